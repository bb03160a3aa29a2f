package dispatch

import (
	"context"
	"errors"
	"testing"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/config"
)

type captured struct {
	topic string
	key   string
	id    string
	body  []byte
	err   error
}

func (c *captured) Produce(_ context.Context, topic string, key, value []byte) error {
	c.topic, c.key, c.body = topic, string(key), value
	return c.err
}

func (c *captured) Publish(_ context.Context, queue, messageID string, body []byte) error {
	c.topic, c.id, c.body = queue, messageID, body
	return c.err
}

func TestKafkaDispatcherKeysByBatch(t *testing.T) {
	c := &captured{}
	d := NewKafkaDispatcher(c, "sermon.video.jobs")
	job := vo.VideoJob{JobID: "j1", Kind: vo.JobKindBatchItem, BatchID: "b1", SourceURL: "https://a.example/x"}
	if err := d.Dispatch(context.Background(), job); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if c.topic != "sermon.video.jobs" || c.key != "b1" {
		t.Fatalf("unexpected topic/key %s/%s", c.topic, c.key)
	}
	decoded, err := vo.UnmarshalVideoJob(c.body)
	if err != nil || decoded.SourceURL != job.SourceURL {
		t.Fatalf("body does not decode: %v %+v", err, decoded)
	}
}

func TestRabbitMQDispatcherUsesJobID(t *testing.T) {
	c := &captured{err: errors.New("channel closed")}
	d := NewRabbitMQDispatcher(c, "jobs")
	err := d.Dispatch(context.Background(), vo.VideoJob{JobID: "j2", Kind: vo.JobKindVideo, VideoID: "v1"})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if c.id != "j2" || c.topic != "jobs" {
		t.Fatalf("unexpected message id/queue %s/%s", c.id, c.topic)
	}
}

func TestDispatcherRejectsInvalidJob(t *testing.T) {
	c := &captured{}
	if err := NewKafkaDispatcher(c, "t").Dispatch(context.Background(), vo.VideoJob{Kind: vo.JobKindVideo}); err == nil {
		t.Fatal("expected validation error")
	}
	if c.body != nil {
		t.Fatal("invalid job must not be produced")
	}
}

func TestNewDispatcherMemory(t *testing.T) {
	cfg := config.Default()
	local := queue.NewMemoryJobQueue(1)
	d, err := NewDispatcher(cfg, local)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if d != local {
		t.Fatal("memory driver should dispatch to the local queue")
	}

	cfg.Dispatch.Driver = "carrier-pigeon"
	if _, err := NewDispatcher(cfg, local); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
