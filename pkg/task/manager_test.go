package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.events, ",")
}

type fakeTask struct {
	name     string
	rec      *recorder
	startErr error
	ctx      context.Context
}

func (f *fakeTask) Name() string { return f.name }

func (f *fakeTask) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.ctx = ctx
	f.rec.add("start:" + f.name)
	return nil
}

func (f *fakeTask) Stop() error {
	f.rec.add("stop:" + f.name)
	return nil
}

func TestStartStopOrder(t *testing.T) {
	reset()
	defer reset()
	rec := &recorder{}
	a, b := &fakeTask{name: "worker", rec: rec}, &fakeTask{name: "sweeper", rec: rec}
	Register(a)
	Register(nil)
	Register(b)

	if err := StartAll(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := StartAll(context.Background()); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}
	if got := strings.Join(Names(), ","); got != "worker,sweeper" {
		t.Fatalf("unexpected names %q", got)
	}

	StopAll()
	if a.ctx.Err() == nil {
		t.Fatal("task context should be cancelled on StopAll")
	}
	if got := rec.joined(); got != "start:worker,start:sweeper,stop:sweeper,stop:worker" {
		t.Fatalf("unexpected order %q", got)
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	reset()
	defer reset()
	rec := &recorder{}
	Register(&fakeTask{name: "worker", rec: rec})
	Register(&fakeTask{name: "consumer", rec: rec, startErr: errors.New("broker down")})

	err := StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "consumer") {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
	if got := rec.joined(); got != "start:worker,stop:worker" {
		t.Fatalf("unexpected events %q", got)
	}
	StopAll()
	if got := rec.joined(); got != "start:worker,stop:worker" {
		t.Fatalf("StopAll after rollback should not stop again, got %q", got)
	}
}

func TestPeriodicTaskRunsUntilStopped(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	p := NewPeriodicTask("tick", 5*time.Millisecond, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		runs++
		return errors.New("ignored")
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := runs
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("periodic task ran %d times", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = p.Stop()
	mu.Lock()
	after := runs
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if runs != after {
		t.Fatalf("task kept running after Stop: %d -> %d", after, runs)
	}
}
