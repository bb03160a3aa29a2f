package dispatch

import (
	"fmt"
	"strings"

	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/kafka"
	"sermon-publisher/pkg/rabbitmq"
)

// NewDispatcher 按 dispatch.driver 选择投递方式，memory 直接写入本地队列
func NewDispatcher(cfg *config.Config, local *queue.MemoryJobQueue) (port.JobDispatcher, error) {
	switch strings.ToLower(cfg.Dispatch.Driver) {
	case "", "memory":
		return local, nil
	case "kafka":
		return NewKafkaDispatcher(kafka.DefaultClient(), cfg.Kafka.Topics.VideoJobs), nil
	case "rabbitmq":
		return NewRabbitMQDispatcher(rabbitmq.DefaultClient(), cfg.RabbitMQ.Queue), nil
	default:
		return nil, fmt.Errorf("unsupported dispatch driver %q", cfg.Dispatch.Driver)
	}
}
