package task

import (
	"context"
	"fmt"
	"sync"

	"sermon-publisher/pkg/logger"
)

// BackgroundTask 进程内长期运行的任务：Worker 池、消息消费者、超时清扫、重试调度
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type registry struct {
	mu      sync.Mutex
	tasks   []BackgroundTask
	started []BackgroundTask
	cancel  context.CancelFunc
}

var defaultRegistry = &registry{}

// Register 必须在 StartAll 之前调用
func Register(t BackgroundTask) {
	if t == nil {
		return
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.tasks = append(defaultRegistry.tasks, t)
}

// StartAll 按注册顺序启动。任一任务启动失败时，已启动的任务按相反顺序停止
func StartAll(ctx context.Context) error {
	r := defaultRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	for _, t := range r.tasks {
		if err := t.Start(runCtx); err != nil {
			cancel()
			r.stopStartedLocked()
			return fmt.Errorf("start background task %s: %w", t.Name(), err)
		}
		r.started = append(r.started, t)
		logger.Debugf("Background task started name=%s", t.Name())
	}
	r.cancel = cancel
	return nil
}

// StopAll 先取消上下文，再按启动的相反顺序逐个 Stop
func StopAll() {
	r := defaultRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.stopStartedLocked()
}

// Names 已注册任务名，健康检查使用
func Names() []string {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	names := make([]string, 0, len(defaultRegistry.tasks))
	for _, t := range defaultRegistry.tasks {
		names = append(names, t.Name())
	}
	return names
}

func (r *registry) stopStartedLocked() {
	for i := len(r.started) - 1; i >= 0; i-- {
		t := r.started[i]
		if err := t.Stop(); err != nil {
			logger.Warnf("Background task stop failed name=%s error=%v", t.Name(), err)
		}
	}
	r.started = nil
}

// reset 仅供测试
func reset() {
	defaultRegistry = &registry{}
}
