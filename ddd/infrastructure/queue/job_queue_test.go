package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/config"
)

func videoJob(id string) vo.VideoJob {
	return vo.VideoJob{JobID: "job-" + id, Kind: vo.JobKindVideo, VideoID: id}
}

func TestEnqueueDequeueOrder(t *testing.T) {
	q := NewMemoryJobQueue(2)
	ctx := context.Background()
	if err := q.Enqueue(ctx, videoJob("a")); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Dispatch(ctx, videoJob("b")); err != nil {
		t.Fatalf("dispatch b: %v", err)
	}
	if err := q.Enqueue(ctx, videoJob("c")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}

	first, _ := q.Dequeue(ctx)
	second, _ := q.Dequeue(ctx)
	if first.VideoID != "a" || second.VideoID != "b" {
		t.Fatalf("unexpected order %s %s", first.VideoID, second.VideoID)
	}
	if m := q.GetMetrics(); m.EnqueueCount != 2 || m.DequeueCount != 2 {
		t.Fatalf("unexpected metrics %+v", &m)
	}
}

func TestEnqueueRejectsInvalidJob(t *testing.T) {
	q := NewMemoryJobQueue(1)
	err := q.Enqueue(context.Background(), vo.VideoJob{Kind: vo.JobKindBatchItem})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEnqueueWaitHonoursContext(t *testing.T) {
	q := NewMemoryJobQueue(1)
	_ = q.Enqueue(context.Background(), videoJob("a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(ctx, videoJob("b")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDequeueAfterClose(t *testing.T) {
	q := NewMemoryJobQueue(1)
	_ = q.Enqueue(context.Background(), videoJob("a"))
	_ = q.Close()

	if job, err := q.Dequeue(context.Background()); err != nil || job.VideoID != "a" {
		t.Fatalf("buffered job should drain after close: %v %v", job, err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if err := q.Enqueue(context.Background(), videoJob("b")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected closed on enqueue, got %v", err)
	}
}

func TestCapacityFor(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.Config
		want int
	}{
		{"nil config", nil, fallbackCapacity},
		{"explicit capacity", &config.Config{Worker: config.WorkerConfig{QueueCapacity: 8, MaxConcurrentTasks: 4}}, 8},
		{"derived from concurrency", &config.Config{Worker: config.WorkerConfig{MaxConcurrentTasks: 3}}, 6},
		{"empty worker config", &config.Config{}, fallbackCapacity},
	}
	for _, tc := range cases {
		if got := capacityFor(tc.cfg); got != tc.want {
			t.Errorf("%s: capacityFor = %d, want %d", tc.name, got, tc.want)
		}
	}
}
