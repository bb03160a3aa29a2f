package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/pkg/config"
)

type handlerFunc func(ctx context.Context, job vo.VideoJob) error

func (f handlerFunc) HandleJob(ctx context.Context, job vo.VideoJob) error { return f(ctx, job) }

func videoJob(id string) vo.VideoJob {
	return vo.VideoJob{JobID: id, Kind: vo.JobKindVideo, VideoID: "v-" + id}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestJobWorkerProcessesQueuedJobs(t *testing.T) {
	q := queue.NewMemoryJobQueue(10)
	var mu sync.Mutex
	seen := map[string]bool{}
	handler := handlerFunc(func(_ context.Context, job vo.VideoJob) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.JobID] = true
		if job.JobID == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	w := NewJobWorker("test", q, handler, 2, time.Second)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}
	for _, id := range []string{"a", "b", "bad"} {
		if err := q.Enqueue(context.Background(), videoJob(id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	waitFor(t, func() bool { return w.GetStats().ProcessedTasks == 3 })
	stats := w.GetStats()
	if stats.SuccessfulTasks != 2 || stats.FailedTasks != 1 || stats.CurrentlyRunning != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatalf("worker should be stopped")
	}
}

func TestJobWorkerRecoversFromPanic(t *testing.T) {
	q := queue.NewMemoryJobQueue(10)
	handler := handlerFunc(func(_ context.Context, job vo.VideoJob) error {
		if job.JobID == "panic" {
			panic("unexpected")
		}
		return nil
	})
	w := NewJobWorker("test", q, handler, 1, 0)
	_ = w.Start(context.Background())
	defer w.Stop()

	_ = q.Enqueue(context.Background(), videoJob("panic"))
	_ = q.Enqueue(context.Background(), videoJob("ok"))
	waitFor(t, func() bool { return w.GetStats().ProcessedTasks == 2 })
	if s := w.GetStats(); s.FailedTasks != 1 || s.SuccessfulTasks != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestJobWorkerStopWaitsForRunningJob(t *testing.T) {
	q := queue.NewMemoryJobQueue(10)
	started := make(chan struct{})
	var finished atomic.Bool
	handler := handlerFunc(func(ctx context.Context, _ vo.VideoJob) error {
		close(started)
		select {
		case <-time.After(100 * time.Millisecond):
			finished.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	w := NewJobWorker("test", q, handler, 1, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	_ = w.Start(ctx)
	_ = q.Enqueue(context.Background(), videoJob("slow"))
	<-started

	// 外部 ctx 取消不应打断进行中的任务
	cancel()
	_ = w.Stop()
	if !finished.Load() {
		t.Fatalf("running job should finish within the grace period")
	}
}

func TestJobWorkerStopCancelsAfterGrace(t *testing.T) {
	q := queue.NewMemoryJobQueue(10)
	started := make(chan struct{})
	var cancelled atomic.Bool
	handler := handlerFunc(func(ctx context.Context, _ vo.VideoJob) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	w := NewJobWorker("test", q, handler, 1, 20*time.Millisecond)
	_ = w.Start(context.Background())
	_ = q.Enqueue(context.Background(), videoJob("stuck"))
	<-started

	_ = w.Stop()
	if !cancelled.Load() {
		t.Fatalf("job context should be cancelled once the grace period elapses")
	}
}

func TestJobWorkerExitsWhenQueueClosed(t *testing.T) {
	q := queue.NewMemoryJobQueue(10)
	var count atomic.Int32
	handler := handlerFunc(func(context.Context, vo.VideoJob) error {
		count.Add(1)
		return nil
	})
	w := NewJobWorker("test", q, handler, 1, 0)
	_ = q.Enqueue(context.Background(), videoJob("a"))
	_ = q.Close()
	_ = w.Start(context.Background())

	waitFor(t, func() bool { return count.Load() == 1 })
	_ = w.Stop()
}

type countingMaintenance struct {
	sweeps     atomic.Int32
	reschedule atomic.Int32
}

func (m *countingMaintenance) SweepStuck(context.Context) (int, error) {
	m.sweeps.Add(1)
	return 0, nil
}

func (m *countingMaintenance) RescheduleDue(context.Context) (int, error) {
	m.reschedule.Add(1)
	return 1, nil
}

func TestMaintenanceTasksRunPeriodically(t *testing.T) {
	m := &countingMaintenance{}
	tasks := MaintenanceTasks(m, config.WorkerConfig{
		StuckCheckInterval: 10 * time.Millisecond,
		RetryScanInterval:  10 * time.Millisecond,
	})
	if len(tasks) != 2 {
		t.Fatalf("expected two maintenance tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if err := task.Start(context.Background()); err != nil {
			t.Fatalf("start %s: %v", task.Name(), err)
		}
	}
	waitFor(t, func() bool { return m.sweeps.Load() >= 2 && m.reschedule.Load() >= 2 })
	for _, task := range tasks {
		_ = task.Stop()
	}

	if MaintenanceTasks(nil, config.WorkerConfig{}) != nil {
		t.Fatalf("no tasks without a maintenance service")
	}
}
