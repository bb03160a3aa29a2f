package worker

import (
	"context"
	"fmt"

	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/service"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/task"
)

// JobWorkerComponentPlugin 负责启动视频任务 Worker 和维护任务
type JobWorkerComponentPlugin struct{}

func (p *JobWorkerComponentPlugin) Name() string {
	return "jobWorkerComponent"
}

func (p *JobWorkerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if cfg == nil || !cfg.Worker.Enabled {
		return nil
	}
	handler, ok := deps.IngestApp.(port.JobHandler)
	if !ok {
		panic("jobWorkerComponent requires a job handler in dependencies")
	}
	maintenance, _ := deps.Maintenance.(service.MaintenanceService)

	queueInstance := queue.DefaultJobQueue()
	return &jobWorkerComponent{
		name:  "jobWorker",
		queue: queueInstance,
		worker: NewJobWorker(
			cfg.Worker.WorkerID,
			queueInstance,
			handler,
			cfg.Worker.MaxConcurrentTasks,
			cfg.Worker.ShutdownGracePeriod,
		),
		maintenance: maintenance,
		cfg:         cfg.Worker,
	}
}

type jobWorkerComponent struct {
	name        string
	queue       queue.JobQueue
	worker      JobWorker
	maintenance service.MaintenanceService
	cfg         config.WorkerConfig
}

func (c *jobWorkerComponent) Start() error {
	if c.worker == nil {
		return fmt.Errorf("job worker not initialized")
	}

	// 注册后台任务，让应用启动时统一管理
	task.Register(&backgroundTaskAdapter{name: c.name, startFunc: c.worker.Start, stopFunc: c.worker.Stop})
	for _, t := range MaintenanceTasks(c.maintenance, c.cfg) {
		task.Register(t)
	}
	logger.Infof("Job worker component registered background tasks name=%s", c.name)
	return nil
}

func (c *jobWorkerComponent) Stop() error {
	// Worker 已由 task.StopAll 停止，这里只关闭队列，保持幂等
	queue.CloseDefaultJobQueue()
	logger.Infof("Job worker component stopped name=%s queued=%d", c.name, c.queue.Size())
	return nil
}

func (c *jobWorkerComponent) GetName() string {
	return c.name
}

// MaintenanceTasks 卡住记录扫描和到期重试两个周期任务
func MaintenanceTasks(m service.MaintenanceService, cfg config.WorkerConfig) []task.BackgroundTask {
	if m == nil {
		return nil
	}
	return []task.BackgroundTask{
		task.NewPeriodicTask("sweep-stuck", cfg.StuckCheckInterval, func(ctx context.Context) error {
			n, err := m.SweepStuck(ctx)
			if n > 0 {
				logger.Infof("Marked %d stuck videos as failed", n)
			}
			return err
		}),
		task.NewPeriodicTask("reschedule-retries", cfg.RetryScanInterval, func(ctx context.Context) error {
			n, err := m.RescheduleDue(ctx)
			if n > 0 {
				logger.Infof("Rescheduled %d failed videos for retry", n)
			}
			return err
		}),
	}
}

// backgroundTaskAdapter adapts Start/Stop functions to the BackgroundTask interface.
type backgroundTaskAdapter struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func() error
}

func (b *backgroundTaskAdapter) Name() string                    { return b.name }
func (b *backgroundTaskAdapter) Start(ctx context.Context) error { return b.startFunc(ctx) }
func (b *backgroundTaskAdapter) Stop() error                     { return b.stopFunc() }
