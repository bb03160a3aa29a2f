package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sermon-publisher/ddd/application/cqe"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/batchstore"
	"sermon-publisher/pkg/errno"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newBatchApp(clock *testClock, d *recordingDispatcher) BatchApp {
	store := batchstore.NewMemoryStore().WithClock(clock.Now)
	return NewBatchAppWith(store, fakeValidator{}, d, BatchOptions{TTL: 24 * time.Hour, Now: clock.Now})
}

func errnoOf(err error) *errno.Errno {
	var biz *errno.BizError
	if errors.As(err, &biz) {
		return biz.Errno
	}
	var no *errno.Errno
	if errors.As(err, &no) {
		return no
	}
	return nil
}

func TestBatchLifecycle(t *testing.T) {
	clock := &testClock{now: baseTime}
	d := &recordingDispatcher{}
	app := newBatchApp(clock, d)
	ctx := context.Background()

	created, err := app.CreateBatch(ctx, &cqe.CreateBatchReq{Sources: []string{
		"https://a.example/1", "not-a-url", "https://a.example/2", "https://a.example/3",
	}})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if created.TotalCount != 3 || len(created.InvalidSources) != 1 || created.InvalidSources[0].Source != "not-a-url" {
		t.Fatalf("unexpected created payload %+v", created)
	}
	if created.InvalidSources[0].Reason == "" {
		t.Fatalf("invalid source without reason")
	}

	jobs := d.dispatched()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 dispatched jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.Kind != vo.JobKindBatchItem || job.BatchID != created.BatchID || !job.AutoApprove {
			t.Fatalf("unexpected job %+v", job)
		}
	}

	status, err := app.GetStatus(ctx, created.BatchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != "started" || status.ProgressPercentage != 0 || status.EstimatedCompletion != nil {
		t.Fatalf("unexpected initial status %+v", status)
	}

	clock.Advance(10 * time.Second)
	if err := app.ReportItemOutcome(ctx, created.BatchID, "https://a.example/1", vo.ItemSucceeded, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	status, _ = app.GetStatus(ctx, created.BatchID)
	if status.Status != "processing" || status.ProgressPercentage != 33.33 {
		t.Fatalf("unexpected progress %+v", status)
	}
	// 10 秒处理 1 个，剩余 2 个约 20 秒
	if status.EstimatedCompletion == nil || !status.EstimatedCompletion.Equal(clock.Now().Add(20*time.Second)) {
		t.Fatalf("unexpected estimate %v", status.EstimatedCompletion)
	}

	_ = app.ReportItemOutcome(ctx, created.BatchID, "https://a.example/2", vo.ItemSucceeded, "")
	_ = app.ReportItemOutcome(ctx, created.BatchID, "https://a.example/3", vo.ItemFailed, "fetch failed")

	status, err = app.GetStatus(ctx, created.BatchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.ProcessedCount != 3 || status.SucceededCount != 2 || status.FailedCount != 1 {
		t.Fatalf("unexpected counts %+v", status)
	}
	if status.Status != "completed" || status.ProgressPercentage != 100 || status.EstimatedCompletion != nil {
		t.Fatalf("unexpected final status %+v", status)
	}
	if len(status.RecentActivity) == 0 || !strings.HasPrefix(status.RecentActivity[0].Message, "Batch completed") {
		t.Fatalf("newest activity should be completion, got %+v", status.RecentActivity)
	}
}

func TestDuplicateOutcomeAfterCompletionIsIgnored(t *testing.T) {
	clock := &testClock{now: baseTime}
	app := newBatchApp(clock, &recordingDispatcher{})
	ctx := context.Background()

	created, err := app.CreateBatch(ctx, &cqe.CreateBatchReq{Sources: []string{"https://a.example/1"}})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := app.ReportItemOutcome(ctx, created.BatchID, "https://a.example/1", vo.ItemSucceeded, ""); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}

	status, _ := app.GetStatus(ctx, created.BatchID)
	if status.ProcessedCount != 1 || status.ProgressPercentage != 100 {
		t.Fatalf("redelivered outcome was counted %+v", status)
	}
	completions := 0
	for _, a := range status.RecentActivity {
		if strings.HasPrefix(a.Message, "Batch completed") {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("expected one completion entry, got %d in %+v", completions, status.RecentActivity)
	}
}

func TestCreateBatchWithoutValidSources(t *testing.T) {
	d := &recordingDispatcher{}
	app := newBatchApp(&testClock{now: baseTime}, d)

	_, err := app.CreateBatch(context.Background(), &cqe.CreateBatchReq{Sources: []string{"not-a-url", "ftp://x"}})
	if errnoOf(err) != errno.ErrNoValidSources {
		t.Fatalf("expected ErrNoValidSources, got %v", err)
	}
	if len(d.dispatched()) != 0 {
		t.Fatalf("nothing should be dispatched")
	}

	_, err = app.CreateBatch(context.Background(), &cqe.CreateBatchReq{Sources: []string{"  "}})
	if errnoOf(err) != errno.ErrSourcesRequired {
		t.Fatalf("expected ErrSourcesRequired, got %v", err)
	}
}

func TestGetStatusUnknownBatch(t *testing.T) {
	app := newBatchApp(&testClock{now: baseTime}, &recordingDispatcher{})
	_, err := app.GetStatus(context.Background(), "missing")
	no := errnoOf(err)
	if no != errno.ErrBatchNotFound || no.HTTPStatus() != 404 {
		t.Fatalf("expected 404 batch not found, got %v", err)
	}
}

func TestBatchExpiresAfterTTL(t *testing.T) {
	clock := &testClock{now: baseTime}
	app := newBatchApp(clock, &recordingDispatcher{})
	created, err := app.CreateBatch(context.Background(), &cqe.CreateBatchReq{Sources: []string{"https://a.example/1"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(24*time.Hour + time.Second)
	if _, err := app.GetStatus(context.Background(), created.BatchID); errnoOf(err) != errno.ErrBatchNotFound {
		t.Fatalf("expected expired batch to be not found, got %v", err)
	}
}

func TestDispatchFailureCountsAsFailedItem(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("broker down")}
	app := newBatchApp(&testClock{now: baseTime}, d)
	created, err := app.CreateBatch(context.Background(), &cqe.CreateBatchReq{Sources: []string{"https://a.example/1", "https://a.example/2"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	status, _ := app.GetStatus(context.Background(), created.BatchID)
	if status.FailedCount != 2 || status.Status != "completed" {
		t.Fatalf("undispatched items should fail the batch item, got %+v", status)
	}
}

func TestReportItemOutcomeRejectsUnknownOutcome(t *testing.T) {
	app := newBatchApp(&testClock{now: baseTime}, &recordingDispatcher{})
	err := app.ReportItemOutcome(context.Background(), "b", "s", vo.ItemOutcome("maybe"), "")
	if errnoOf(err) != errno.ErrInvalidParam {
		t.Fatalf("expected invalid param, got %v", err)
	}
}

func TestConcurrentOutcomesAreNotLost(t *testing.T) {
	clock := &testClock{now: baseTime}
	app := newBatchApp(clock, &recordingDispatcher{})
	sources := make([]string, 30)
	for i := range sources {
		sources[i] = "https://a.example/" + string(rune('a'+i%26)) + strings.Repeat("x", i)
	}
	created, err := app.CreateBatch(context.Background(), &cqe.CreateBatchReq{Sources: sources})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := vo.ItemSucceeded
			if i%3 == 0 {
				outcome = vo.ItemFailed
			}
			_ = app.ReportItemOutcome(context.Background(), created.BatchID, sources[i], outcome, "")
		}(i)
	}
	wg.Wait()

	status, _ := app.GetStatus(context.Background(), created.BatchID)
	if status.ProcessedCount != 30 || status.SucceededCount != 20 || status.FailedCount != 10 {
		t.Fatalf("lost updates: %+v", status)
	}
}
