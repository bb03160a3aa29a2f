package batchstore

import (
	"context"
	"sync"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
)

type memoryEntry struct {
	batch     entity.BatchSubmission
	activity  []vo.BatchActivity
	expiresAt time.Time
}

// MemoryStore 单进程存储，所有修改都在同一把锁内完成
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

// WithClock 替换时钟
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

var _ repo.BatchStore = (*MemoryStore)(nil)

// live 调用方持有锁；过期条目在读取时删除
func (s *MemoryStore) live(id string) (*memoryEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) Create(_ context.Context, b *entity.BatchSubmission, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[b.ID] = &memoryEntry{batch: copyBatch(b), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*entity.BatchSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return nil, entity.Errorf(entity.KindNotFound, "get batch", "batch %s not found", id)
	}
	b := copyBatch(&e.batch)
	return &b, nil
}

func (s *MemoryStore) IncrementOutcome(_ context.Context, id string, outcome vo.ItemOutcome) (*entity.BatchSubmission, error) {
	if !outcome.IsValid() {
		return nil, entity.Errorf(entity.KindValidation, "report outcome", "unknown outcome %q", outcome)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return nil, entity.Errorf(entity.KindNotFound, "report outcome", "batch %s not found", id)
	}
	if !e.batch.ApplyOutcome(outcome, s.now()) {
		return nil, entity.NewConcurrencyError("report outcome", entity.ErrBatchSettled)
	}
	b := copyBatch(&e.batch)
	return &b, nil
}

func (s *MemoryStore) AppendActivity(_ context.Context, id string, activity vo.BatchActivity, limit int) error {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return entity.Errorf(entity.KindNotFound, "append activity", "batch %s not found", id)
	}
	e.activity = append([]vo.BatchActivity{activity}, e.activity...)
	if len(e.activity) > limit {
		e.activity = e.activity[:limit]
	}
	return nil
}

func (s *MemoryStore) RecentActivity(_ context.Context, id string, limit int) ([]vo.BatchActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return []vo.BatchActivity{}, nil
	}
	n := len(e.activity)
	if limit > 0 && n > limit {
		n = limit
	}
	return append([]vo.BatchActivity(nil), e.activity[:n]...), nil
}

func copyBatch(b *entity.BatchSubmission) entity.BatchSubmission {
	out := *b
	out.Sources = append([]string(nil), b.Sources...)
	out.InvalidSources = append([]vo.InvalidSource(nil), b.InvalidSources...)
	return out
}
