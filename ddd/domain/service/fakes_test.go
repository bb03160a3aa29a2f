package service

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
)

type fakeSynthesizer struct {
	err   error
	block bool
	calls int
	lang  string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req port.SynthesisRequest) (string, error) {
	f.calls++
	f.lang = req.Language
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type fakeCompositor struct {
	err       error
	emptyFile bool
	last      port.CompositionRequest
	onCompose func()
}

func (f *fakeCompositor) Compose(ctx context.Context, req port.CompositionRequest) (port.CompositionResult, error) {
	f.last = req
	if f.onCompose != nil {
		f.onCompose()
	}
	if f.err != nil {
		return port.CompositionResult{}, f.err
	}
	data := []byte("video-bytes")
	if f.emptyFile {
		data = nil
	}
	if err := os.WriteFile(req.OutputPath, data, 0o644); err != nil {
		return port.CompositionResult{}, err
	}
	if err := os.WriteFile(req.ThumbnailPath, []byte("jpg"), 0o644); err != nil {
		return port.CompositionResult{}, err
	}
	return port.CompositionResult{Duration: 42 * time.Second}, nil
}

type fixedSelector struct{ path string }

func (s fixedSelector) Select(context.Context, string) (string, error) {
	return s.path, nil
}

type fakePublisher struct {
	err       error
	calls     int
	result    vo.PublishResult
	meta      vo.PublishMetadata
	onPublish func()
}

func (p *fakePublisher) Publish(_ context.Context, _ string, meta vo.PublishMetadata) (vo.PublishResult, error) {
	p.calls++
	p.meta = meta
	if p.onPublish != nil {
		p.onPublish()
	}
	if p.err != nil {
		return vo.PublishResult{}, p.err
	}
	return p.result, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []vo.VideoJob
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job vo.VideoJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

// memoryVideoRepo 保存状态快照，Save 按期望状态做 CAS
type memoryVideoRepo struct {
	mu     sync.Mutex
	states map[string]entity.VideoRecordState
}

func newMemoryVideoRepo(records ...*entity.VideoRecord) *memoryVideoRepo {
	r := &memoryVideoRepo{states: make(map[string]entity.VideoRecordState)}
	for _, v := range records {
		r.states[v.ID()] = v.State()
	}
	return r
}

func (r *memoryVideoRepo) Create(_ context.Context, v *entity.VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[v.ID()] = v.State()
	return nil
}

func (r *memoryVideoRepo) Get(_ context.Context, id string) (*entity.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[id]
	if !ok {
		return nil, entity.NewNotFoundError("get video", errors.New(id))
	}
	return entity.RestoreVideoRecord(s), nil
}

func (r *memoryVideoRepo) Save(_ context.Context, v *entity.VideoRecord, expected vo.VideoStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[v.ID()]
	if !ok {
		return entity.NewNotFoundError("save video", errors.New(v.ID()))
	}
	if s.Status != expected {
		return entity.Errorf(entity.KindConcurrency, "save video", "status is %s, expected %s", s.Status, expected)
	}
	r.states[v.ID()] = v.State()
	return nil
}

func (r *memoryVideoRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
	return nil
}

func (r *memoryVideoRepo) FindByIDs(ctx context.Context, ids []string) ([]*entity.VideoRecord, error) {
	var out []*entity.VideoRecord
	for _, id := range ids {
		if v, err := r.Get(ctx, id); err == nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryVideoRepo) FindIDs(_ context.Context, q repo.VideoQuery) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.states {
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, s.Status) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryVideoRepo) FindStuckProcessing(_ context.Context, before time.Time, _ int) ([]*entity.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.VideoRecord
	for _, s := range r.states {
		if s.Status == vo.VideoStatusProcessing && s.ProcessingStartedAt != nil && s.ProcessingStartedAt.Before(before) {
			out = append(out, entity.RestoreVideoRecord(s))
		}
	}
	return out, nil
}

func (r *memoryVideoRepo) FindDueForRetry(_ context.Context, now time.Time, _ int) ([]*entity.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.VideoRecord
	for _, s := range r.states {
		if s.Status == vo.VideoStatusFailed && s.NextRetryAt != nil && !s.NextRetryAt.After(now) {
			out = append(out, entity.RestoreVideoRecord(s))
		}
	}
	return out, nil
}

func (r *memoryVideoRepo) Transaction(_ context.Context, fn func(tx repo.VideoRecordRepository) error) error {
	return fn(r)
}

func (r *memoryVideoRepo) status(id string) vo.VideoStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[id].Status
}

func containsStatus(list []vo.VideoStatus, s vo.VideoStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
