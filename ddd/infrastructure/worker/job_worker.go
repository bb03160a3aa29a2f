package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/logger"
)

// JobWorker 从本地队列取任务并交给处理器
type JobWorker interface {
	// Start 启动工作器
	Start(ctx context.Context) error

	// Stop 停止取新任务，等待进行中的任务在宽限期内结束
	Stop() error

	// IsRunning 检查工作器是否运行中
	IsRunning() bool

	// GetStats 获取工作器统计信息
	GetStats() WorkerStats
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedTasks   uint64    `json:"processed_tasks"`
	SuccessfulTasks  uint64    `json:"successful_tasks"`
	FailedTasks      uint64    `json:"failed_tasks"`
	CurrentlyRunning int       `json:"currently_running"`
	StartTime        time.Time `json:"start_time"`
	LastTaskTime     time.Time `json:"last_task_time"`
}

type jobWorkerImpl struct {
	id          string
	jobQueue    queue.JobQueue
	handler     port.JobHandler
	workerCount int
	grace       time.Duration

	mu         sync.Mutex
	running    bool
	stopLoops  context.CancelFunc
	cancelJobs context.CancelFunc
	wg         sync.WaitGroup

	statsMu sync.RWMutex
	stats   WorkerStats
}

// NewJobWorker grace 为停止时等待进行中任务的时间，<=0 时立即取消
func NewJobWorker(id string, jobQueue queue.JobQueue, handler port.JobHandler, workerCount int, grace time.Duration) JobWorker {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &jobWorkerImpl{
		id:          id,
		jobQueue:    jobQueue,
		handler:     handler,
		workerCount: workerCount,
		grace:       grace,
		stats:       WorkerStats{StartTime: time.Now()},
	}
}

func (w *jobWorkerImpl) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}

	// 取任务的循环随 Stop 立即结束；任务本身的 ctx 在宽限期后才取消
	loopCtx, stopLoops := context.WithCancel(ctx)
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	w.stopLoops, w.cancelJobs = stopLoops, cancelJobs
	w.running = true
	w.updateStats(func(s *WorkerStats) { s.StartTime = time.Now() })

	logger.Infof("Starting job worker %s with %d goroutines", w.id, w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.workerLoop(loopCtx, jobCtx, i)
	}
	return nil
}

func (w *jobWorkerImpl) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	logger.Infof("Stopping job worker %s", w.id)
	w.stopLoops()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	if w.grace > 0 {
		select {
		case <-done:
		case <-time.After(w.grace):
			logger.Warnf("Job worker %s grace period elapsed, cancelling running jobs", w.id)
		}
	}
	w.cancelJobs()
	<-done

	w.running = false
	logger.Infof("Job worker %s stopped", w.id)
	return nil
}

func (w *jobWorkerImpl) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *jobWorkerImpl) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

func (w *jobWorkerImpl) workerLoop(loopCtx, jobCtx context.Context, n int) {
	defer w.wg.Done()
	logger.Debugf("Worker %s-%d started", w.id, n)
	defer logger.Debugf("Worker %s-%d stopped", w.id, n)

	for {
		job, err := w.jobQueue.Dequeue(loopCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Warnf("Worker %s-%d failed to dequeue job: %v", w.id, n, err)
			select {
			case <-loopCtx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.processJob(jobCtx, job, n)
	}
}

func (w *jobWorkerImpl) processJob(ctx context.Context, job vo.VideoJob, n int) {
	ctx = logger.WithFields(ctx, map[string]interface{}{
		"worker": fmt.Sprintf("%s-%d", w.id, n),
		"job_id": job.JobID,
	})
	log := logger.FromContext(ctx)

	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning++
		s.LastTaskTime = time.Now()
	})
	defer w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning--
		s.ProcessedTasks++
	})

	// 处理器 panic 不能带走整个工作协程
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job handler panic: %v", r)
			}
		}()
		return w.handler.HandleJob(ctx, job)
	}()
	if err != nil {
		log.WithError(err).Warn("job failed")
		w.updateStats(func(s *WorkerStats) { s.FailedTasks++ })
		return
	}
	log.Debug("job finished")
	w.updateStats(func(s *WorkerStats) { s.SuccessfulTasks++ })
}

func (w *jobWorkerImpl) updateStats(fn func(*WorkerStats)) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	fn(&w.stats)
}
