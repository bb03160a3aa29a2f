package dispatch

import (
	"context"
	"fmt"

	"sermon-publisher/ddd/domain/vo"
)

// producer kafka 写入能力，测试中替换
type producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaDispatcher 把任务写入 kafka，按批次或视频 ID 分区
type KafkaDispatcher struct {
	client producer
	topic  string
}

func NewKafkaDispatcher(client producer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{client: client, topic: topic}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job vo.VideoJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	body, err := job.Marshal()
	if err != nil {
		return err
	}
	if err := d.client.Produce(ctx, d.topic, []byte(job.Key()), body); err != nil {
		return fmt.Errorf("produce video job %s: %w", job.JobID, err)
	}
	return nil
}
