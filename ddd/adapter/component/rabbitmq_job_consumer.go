package component

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/rabbitmq"
)

// RabbitMQJobConsumerPlugin 从 rabbitmq 读取视频任务写入本地队列
type RabbitMQJobConsumerPlugin struct{}

func (p *RabbitMQJobConsumerPlugin) Name() string { return "rabbitmqJobConsumer" }

func (p *RabbitMQJobConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil || !cfg.Worker.Enabled || cfg.Dispatch.Driver != "rabbitmq" {
		return nil
	}
	return &rabbitMQJobConsumer{
		client: rabbitmq.DefaultClient(),
		cfg:    cfg.RabbitMQ,
		tag:    cfg.Worker.WorkerID,
		sink:   queue.DefaultJobQueue(),
	}
}

type rabbitMQJobConsumer struct {
	client *rabbitmq.Client
	cfg    config.RabbitMQConfig
	tag    string
	sink   queue.JobQueue

	ch     *amqp.Channel
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *rabbitMQJobConsumer) Start() error {
	ch, deliveries, err := c.client.Consume(c.cfg.Queue, c.tag, c.cfg.PrefetchCount)
	if err != nil {
		return err
	}
	c.ch = ch
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Infof("RabbitMQ consumer started queue=%s prefetch=%d", c.cfg.Queue, c.cfg.PrefetchCount)
		consumeDeliveries(ctx, deliveries, c.sink)
	}()
	return nil
}

// consumeDeliveries 解码失败直接丢弃；入队失败重新入列等待其他消费者
func consumeDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, sink queue.JobQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warnf("RabbitMQ delivery channel closed")
				return
			}
			job, err := vo.UnmarshalVideoJob(d.Body)
			if err != nil {
				logger.Warnf("RabbitMQ message decode error message_id=%s error=%v", d.MessageId, err)
				_ = d.Nack(false, false)
				continue
			}
			if err := sink.EnqueueWait(ctx, job); err != nil {
				_ = d.Nack(false, true)
				if ctx.Err() != nil {
					return
				}
				logger.Warnf("Enqueue video job failed job_id=%s error=%v", job.JobID, err)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *rabbitMQJobConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.ch != nil {
		_ = c.ch.Close()
	}
	return nil
}

func (c *rabbitMQJobConsumer) GetName() string { return "rabbitmqJobConsumer" }
