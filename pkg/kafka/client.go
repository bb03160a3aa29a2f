package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// Client 视频任务 topic 的生产与消费入口，Writer 按 topic 复用
type Client struct {
	brokers []string
	dialer  *kafka.Dialer
	writers sync.Map // topic -> *kafka.Writer
}

var (
	clientOnce      sync.Once
	singletonClient *Client
)

func DefaultClient() *Client {
	clientOnce.Do(func() {
		singletonClient = &Client{}
	})
	return singletonClient
}

func (c *Client) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before Kafka client")
	}
	if len(cfg.Kafka.BootstrapServers) == 0 {
		panic("kafka.bootstrap_servers is required when dispatch.driver=kafka")
	}
	c.brokers = cfg.Kafka.BootstrapServers
	c.dialer = &kafka.Dialer{Timeout: 10 * time.Second, ClientID: cfg.Kafka.ClientID, DualStack: true}
	logger.Infof("Kafka client opened brokers=%v client_id=%s", c.brokers, cfg.Kafka.ClientID)
}

func (c *Client) Close() {
	c.writers.Range(func(topic, value interface{}) bool {
		if err := value.(*kafka.Writer).Close(); err != nil {
			logger.Warnf("Close kafka writer failed topic=%v error=%v", topic, err)
		}
		return true
	})
}

// writer 单条任务即时发送，不等待攒批
func (c *Client) writer(topic string) *kafka.Writer {
	if v, ok := c.writers.Load(topic); ok {
		return v.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	actual, loaded := c.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

// Produce key 相同的消息落在同一分区，同一批次的任务保持提交顺序
func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) error {
	return c.writer(topic).WriteMessages(ctx, kafka.Message{Key: key, Value: value, Time: time.Now()})
}

// Reader 关闭自动提交，由消费者在任务入队后显式 CommitMessages
func (c *Client) Reader(topic, groupID string) *kafka.Reader {
	logger.Infof("Kafka reader created topic=%s group=%s", topic, groupID)
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        groupID,
		Topic:          topic,
		Dialer:         c.dialer,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// EnsureTopic 通过 controller 创建 topic，已存在不算错误
func (c *Client) EnsureTopic(topic string, partitions, replication int) error {
	if len(c.brokers) == 0 {
		return errors.New("kafka client not opened")
	}
	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}
	conn, err := c.dialer.Dial("tcp", c.brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("lookup controller: %w", err)
	}
	cc, err := c.dialer.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cc.Close()
	err = cc.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: partitions, ReplicationFactor: replication})
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return nil
	}
	return err
}
