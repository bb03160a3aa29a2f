package component

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/config"
	pkgkafka "sermon-publisher/pkg/kafka"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
)

// KafkaJobConsumerPlugin 从 kafka 读取视频任务写入本地队列
type KafkaJobConsumerPlugin struct{}

func (p *KafkaJobConsumerPlugin) Name() string { return "kafkaJobConsumer" }

func (p *KafkaJobConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil || !cfg.Worker.Enabled || cfg.Dispatch.Driver != "kafka" {
		return nil
	}
	reader := pkgkafka.DefaultClient().Reader(cfg.Kafka.Topics.VideoJobs, cfg.Kafka.GroupID)
	return NewKafkaJobConsumer(reader, queue.DefaultJobQueue(), cfg.Kafka)
}

// messageReader kafka.Reader 的消费能力
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type kafkaJobConsumer struct {
	reader messageReader
	sink   queue.JobQueue
	cfg    config.KafkaConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaJobConsumer(reader messageReader, sink queue.JobQueue, cfg config.KafkaConfig) manager.Component {
	return &kafkaJobConsumer{reader: reader, sink: sink, cfg: cfg}
}

func (c *kafkaJobConsumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.reader.Close()
		logger.Infof("Kafka consumer started topic=%s group=%s", c.cfg.Topics.VideoJobs, c.cfg.GroupID)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				logger.Warnf("Kafka read error error=%s", err.Error())
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if c.handle(ctx, msg) {
				if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
					logger.Warnf("Kafka commit failed offset=%d error=%v", msg.Offset, err)
				}
			}
		}
	}()
	return nil
}

// handle 返回是否提交位点
func (c *kafkaJobConsumer) handle(ctx context.Context, msg kafkago.Message) bool {
	job, err := vo.UnmarshalVideoJob(msg.Value)
	if err != nil {
		logger.Warnf("Kafka message decode error offset=%d error=%v", msg.Offset, err)
		return c.cfg.CommitOnDecodeError
	}
	// 本地队列满时阻塞，kafka 侧自然形成背压
	if err := c.sink.EnqueueWait(ctx, job); err != nil {
		if ctx.Err() == nil {
			logger.Warnf("Enqueue video job failed job_id=%s error=%v", job.JobID, err)
		}
		return ctx.Err() == nil && c.cfg.CommitOnProcessError
	}
	logger.Debugf("Kafka message received job_id=%s kind=%s", job.JobID, job.Kind)
	return true
}

func (c *kafkaJobConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *kafkaJobConsumer) GetName() string { return "kafkaJobConsumer" }
