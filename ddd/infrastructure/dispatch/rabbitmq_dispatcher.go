package dispatch

import (
	"context"
	"fmt"

	"sermon-publisher/ddd/domain/vo"
)

type publisher interface {
	Publish(ctx context.Context, queue, messageID string, body []byte) error
}

// RabbitMQDispatcher 把任务发布到持久化队列
type RabbitMQDispatcher struct {
	client publisher
	queue  string
}

func NewRabbitMQDispatcher(client publisher, queue string) *RabbitMQDispatcher {
	return &RabbitMQDispatcher{client: client, queue: queue}
}

func (d *RabbitMQDispatcher) Dispatch(ctx context.Context, job vo.VideoJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	body, err := job.Marshal()
	if err != nil {
		return err
	}
	if err := d.client.Publish(ctx, d.queue, job.JobID, body); err != nil {
		return fmt.Errorf("publish video job %s: %w", job.JobID, err)
	}
	return nil
}
