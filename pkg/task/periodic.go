package task

import (
	"context"
	"sync"
	"time"

	"sermon-publisher/pkg/logger"
)

// PeriodicTask 按固定间隔执行 fn，直到 Stop 或 ctx 取消
type PeriodicTask struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPeriodicTask(name string, interval time.Duration, fn func(ctx context.Context) error) *PeriodicTask {
	return &PeriodicTask{name: name, interval: interval, fn: fn}
}

func (t *PeriodicTask) Name() string {
	return t.name
}

func (t *PeriodicTask) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(runCtx, t.done)
	return nil
}

func (t *PeriodicTask) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.fn(ctx); err != nil {
				logger.Warn("Periodic task run failed", map[string]interface{}{
					"task":  t.name,
					"error": err.Error(),
				})
			}
		}
	}
}

func (t *PeriodicTask) Stop() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
