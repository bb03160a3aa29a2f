package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/service"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/database/persistence"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeValidator struct{}

func (fakeValidator) Validate(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, "https://") {
		return entity.NewValidationError("validate source", errors.New("invalid URL format"))
	}
	return nil
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

func (d *recordingDispatcher) dispatched() []vo.VideoJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]vo.VideoJob(nil), d.jobs...)
}

type fakeFetcher struct {
	err error
}

func (f fakeFetcher) Fetch(_ context.Context, url string) (vo.SermonContent, error) {
	if f.err != nil {
		return vo.SermonContent{}, f.err
	}
	return vo.NewSermonContent(url, "은혜의 말씀", "로마서 8:28", "박목사", "은혜교회", "하나님은 모든 것을 합력하여 선을 이루십니다."), nil
}

type fakePipeline struct {
	mu     sync.Mutex
	err    error
	panicV interface{}
	calls  []service.ProcessOptions
}

func (p *fakePipeline) Process(_ context.Context, _ string, opts service.ProcessOptions) (*entity.VideoRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, opts)
	if p.panicV != nil {
		panic(p.panicV)
	}
	return nil, p.err
}

// recordingBatches 只记录 ReportItemOutcome
type recordingBatches struct {
	BatchApp
	mu       sync.Mutex
	outcomes []vo.ItemOutcome
	details  []string
}

func (r *recordingBatches) ReportItemOutcome(_ context.Context, _, _ string, outcome vo.ItemOutcome, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	r.details = append(r.details, detail)
	return nil
}

func openTestRepo(t *testing.T) repo.VideoRecordRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return persistence.NewVideoRecordRepository(db)
}

// seedVideo 直接写入指定状态的记录
func seedVideo(t *testing.T, r repo.VideoRecordRepository, status vo.VideoStatus, mutate func(s *entity.VideoRecordState)) *entity.VideoRecord {
	t.Helper()
	sermon := vo.NewSermonContent("https://church.example/s", "주일 설교", "시편 23:1", "이목사", "소망교회", "여호와는 나의 목자시니 내게 부족함이 없으리로다.")
	s := entity.NewVideoRecord(sermon, "", "", baseTime).State()
	s.Status = status
	if mutate != nil {
		mutate(&s)
	}
	v := entity.RestoreVideoRecord(s)
	if err := r.Create(context.Background(), v); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return v
}

func mustGet(t *testing.T, r repo.VideoRecordRepository, id string) *entity.VideoRecord {
	t.Helper()
	v, err := r.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return v
}
