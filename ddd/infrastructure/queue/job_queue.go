package queue

import (
	"context"
	"errors"
	"sync"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/metrics"
)

var (
	// ErrQueueFull 非阻塞入队时队列已满
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("job queue is closed")
)

// JobQueue 进程内任务队列
type JobQueue interface {
	// Enqueue 非阻塞入队，队列满时返回 ErrQueueFull
	Enqueue(ctx context.Context, job vo.VideoJob) error

	// EnqueueWait 阻塞直到有空位，供消息消费者做背压
	EnqueueWait(ctx context.Context, job vo.VideoJob) error

	// Dequeue 出队任务（阻塞）
	Dequeue(ctx context.Context) (vo.VideoJob, error)

	// Size 获取队列大小
	Size() int

	// Close 关闭队列
	Close() error
}

// MemoryJobQueue 基于 channel 的任务队列
type MemoryJobQueue struct {
	queue   chan vo.VideoJob
	closed  bool
	mu      sync.RWMutex
	metrics *QueueMetrics
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	MaxSize      int
	CurrentSize  int
	mu           sync.RWMutex
}

// NewMemoryJobQueue 创建内存任务队列
func NewMemoryJobQueue(capacity int) *MemoryJobQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryJobQueue{
		queue:   make(chan vo.VideoJob, capacity),
		metrics: &QueueMetrics{MaxSize: capacity},
	}
}

// Dispatch 实现 port.JobDispatcher
func (q *MemoryJobQueue) Dispatch(ctx context.Context, job vo.VideoJob) error {
	return q.Enqueue(ctx, job)
}

func (q *MemoryJobQueue) Enqueue(ctx context.Context, job vo.VideoJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- job:
		q.onEnqueue()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryJobQueue) EnqueueWait(ctx context.Context, job vo.VideoJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- job:
		q.onEnqueue()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryJobQueue) Dequeue(ctx context.Context) (vo.VideoJob, error) {
	select {
	case job, ok := <-q.queue:
		if !ok {
			return vo.VideoJob{}, ErrQueueClosed
		}
		q.onDequeue()
		return job, nil
	case <-ctx.Done():
		return vo.VideoJob{}, ctx.Err()
	}
}

func (q *MemoryJobQueue) Size() int {
	return len(q.queue)
}

// Close 关闭后剩余任务仍可出队
func (q *MemoryJobQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}

// GetMetrics 获取队列指标
func (q *MemoryJobQueue) GetMetrics() QueueMetrics {
	q.metrics.mu.RLock()
	defer q.metrics.mu.RUnlock()
	return QueueMetrics{
		EnqueueCount: q.metrics.EnqueueCount,
		DequeueCount: q.metrics.DequeueCount,
		MaxSize:      q.metrics.MaxSize,
		CurrentSize:  q.Size(),
	}
}

func (q *MemoryJobQueue) onEnqueue() {
	q.metrics.mu.Lock()
	q.metrics.EnqueueCount++
	q.metrics.mu.Unlock()
	metrics.QueueDepth.Set(float64(len(q.queue)))
}

func (q *MemoryJobQueue) onDequeue() {
	q.metrics.mu.Lock()
	q.metrics.DequeueCount++
	q.metrics.mu.Unlock()
	metrics.QueueDepth.Set(float64(len(q.queue)))
}
