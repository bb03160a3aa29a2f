package queue

import (
	"sync"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

const fallbackCapacity = 100

var (
	defaultQueueOnce sync.Once
	defaultQueue     *MemoryJobQueue
)

// DefaultJobQueue 进程内共享的视频任务队列，消费者写入、Worker 读取
func DefaultJobQueue() *MemoryJobQueue {
	defaultQueueOnce.Do(func() {
		defaultQueue = NewMemoryJobQueue(capacityFor(config.GetGlobalConfig()))
	})
	return defaultQueue
}

// capacityFor 未配置时按并发数的两倍预留，保证每个 Worker 取完后还有一个在等
func capacityFor(cfg *config.Config) int {
	if cfg == nil {
		return fallbackCapacity
	}
	switch {
	case cfg.Worker.QueueCapacity > 0:
		return cfg.Worker.QueueCapacity
	case cfg.Worker.MaxConcurrentTasks > 0:
		return cfg.Worker.MaxConcurrentTasks * 2
	default:
		return fallbackCapacity
	}
}

// CloseDefaultJobQueue 关闭后剩余任务仍可被取出，之后 Dequeue 返回 ErrQueueClosed
func CloseDefaultJobQueue() {
	if defaultQueue == nil {
		return
	}
	if remaining := defaultQueue.Size(); remaining > 0 {
		logger.Warnf("Closing job queue with pending jobs remaining=%d", remaining)
	}
	_ = defaultQueue.Close()
}
