package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// Client 单连接的 RabbitMQ 客户端，发布使用独立 channel
type Client struct {
	url  string
	conn *amqp.Connection

	mu      sync.Mutex
	pubChan *amqp.Channel
}

var (
	once      sync.Once
	singleton *Client
)

func DefaultClient() *Client {
	once.Do(func() {
		singleton = &Client{}
	})
	return singleton
}

// MustOpen 连接 RabbitMQ，失败最多重试 5 次
func (c *Client) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before RabbitMQ client")
	}
	if err := c.Dial(cfg.RabbitMQ.URL, 5, 5*time.Second); err != nil {
		panic(err)
	}
}

func (c *Client) Dial(url string, attempts int, interval time.Duration) error {
	c.url = url
	var err error
	for i := 0; i < attempts; i++ {
		c.conn, err = amqp.Dial(url)
		if err == nil {
			logger.Infof("RabbitMQ connection established")
			return nil
		}
		logger.Warnf("RabbitMQ dial failed, retrying in %s (%d/%d): %v", interval, i+1, attempts, err)
		time.Sleep(interval)
	}
	return fmt.Errorf("connect rabbitmq: %w", err)
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.pubChan != nil {
		_ = c.pubChan.Close()
		c.pubChan = nil
	}
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// DeclareQueue 声明持久化队列
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (c *Client) publishChannel(queue string) (*amqp.Channel, error) {
	if c.pubChan != nil && !c.pubChan.IsClosed() {
		return c.pubChan, nil
	}
	if c.conn == nil {
		return nil, fmt.Errorf("rabbitmq connection not opened")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	c.pubChan = ch
	return ch, nil
}

// Publish 投递持久化 JSON 消息到默认交换机
func (c *Client) Publish(ctx context.Context, queue, messageID string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.publishChannel(queue)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consume 打开消费 channel，设置 prefetch，手动 ack
func (c *Client) Consume(queue, consumerTag string, prefetch int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	if c.conn == nil {
		return nil, nil, fmt.Errorf("rabbitmq connection not opened")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, nil, err
		}
	}
	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return ch, deliveries, nil
}
