package batchstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	b := newBatch(t, 3, time.Now().UTC())

	if err := store.Create(ctx, b, 24*time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ttl := mr.TTL(batchKey(b.ID)); ttl != 24*time.Hour {
		t.Fatalf("ttl = %s", ttl)
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalCount != 3 || len(got.Sources) != 3 || got.Status != vo.BatchStatusStarted {
		t.Fatalf("unexpected batch %+v", got)
	}
	if len(got.InvalidSources) != 1 || got.InvalidSources[0].Source != "not-a-url" {
		t.Fatalf("invalid sources lost: %+v", got.InvalidSources)
	}
}

func TestRedisStoreIncrementOutcome(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	b := newBatch(t, 3, time.Now().UTC())
	_ = store.Create(ctx, b, time.Hour)

	steps := []struct {
		outcome vo.ItemOutcome
		status  vo.BatchStatus
	}{
		{vo.ItemSucceeded, vo.BatchStatusProcessing},
		{vo.ItemSucceeded, vo.BatchStatusProcessing},
		{vo.ItemFailed, vo.BatchStatusCompleted},
	}
	var last *entity.BatchSubmission
	for i, s := range steps {
		var err error
		last, err = store.IncrementOutcome(ctx, b.ID, s.outcome)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if last.Status != s.status {
			t.Fatalf("step %d: status = %s, want %s", i, last.Status, s.status)
		}
	}
	if last.ProcessedCount != 3 || last.SucceededCount != 2 || last.FailedCount != 1 {
		t.Fatalf("unexpected counts %+v", last)
	}
}

func TestRedisStoreMissingBatch(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !entity.IsKind(err, entity.KindNotFound) {
		t.Fatalf("get: expected not found, got %v", err)
	}
	if _, err := store.IncrementOutcome(ctx, "missing", vo.ItemFailed); !entity.IsKind(err, entity.KindNotFound) {
		t.Fatalf("increment: expected not found, got %v", err)
	}
}

func TestRedisStoreActivity(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	b := newBatch(t, 1, time.Now().UTC())
	_ = store.Create(ctx, b, time.Hour)

	for _, msg := range []string{"queued", "processing", "done"} {
		if err := store.AppendActivity(ctx, b.ID, vo.BatchActivity{Timestamp: time.Now().UTC(), Message: msg}, 2); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := store.RecentActivity(ctx, b.ID, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Message != "done" {
		t.Fatalf("unexpected activity %+v", got)
	}
}

func TestRedisStoreConcurrentIncrements(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	const n = 40
	b := newBatch(t, n, time.Now().UTC())
	if err := store.Create(ctx, b, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	var completed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := vo.ItemSucceeded
			if i%5 == 0 {
				outcome = vo.ItemFailed
			}
			got, err := store.IncrementOutcome(ctx, b.ID, outcome)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if got.Status == vo.BatchStatusCompleted {
				completed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ProcessedCount != n || got.SucceededCount+got.FailedCount != n || got.FailedCount != n/5 {
		t.Fatalf("lost updates: %+v", got)
	}
	if c := completed.Load(); c != 1 {
		t.Fatalf("expected exactly one completing report, got %d", c)
	}
}

func TestRedisStoreIgnoresOutcomesPastTotal(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	b := newBatch(t, 1, time.Now().UTC())
	_ = store.Create(ctx, b, time.Hour)

	if _, err := store.IncrementOutcome(ctx, b.ID, vo.ItemSucceeded); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if _, err := store.IncrementOutcome(ctx, b.ID, vo.ItemSucceeded); !errors.Is(err, entity.ErrBatchSettled) {
		t.Fatalf("expected settled batch, got %v", err)
	}
	got, _ := store.Get(ctx, b.ID)
	if got.ProcessedCount != 1 || got.SucceededCount != 1 || got.ProgressPercentage() != 100 {
		t.Fatalf("duplicate report changed counts: %+v", got)
	}
}
