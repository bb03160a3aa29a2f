package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sermon-publisher/ddd/application/cqe"
	"sermon-publisher/ddd/application/dto"
	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/gateway"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/source"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/metrics"
)

var (
	singleBatchApp BatchApp
	onceBatchApp   sync.Once
)

// 状态接口返回的活动条数
const statusActivityLimit = 10

type BatchApp interface {
	// CreateBatch 校验来源、保存批次并为每个有效来源投递一个任务
	CreateBatch(ctx context.Context, req *cqe.CreateBatchReq) (*dto.BatchCreatedDto, error)
	// GetStatus 查询批次进度，不存在或已过期返回 ErrBatchNotFound
	GetStatus(ctx context.Context, batchID string) (*dto.BatchStatusDto, error)
	// ReportItemOutcome 单个来源处理结束时调用且只调用一次
	ReportItemOutcome(ctx context.Context, batchID, sourceURL string, outcome vo.ItemOutcome, detail string) error
}

// BatchOptions 批次参数
type BatchOptions struct {
	TTL           time.Duration
	ActivityLimit int
	Now           func() time.Time
}

type batchAppImpl struct {
	store      repo.BatchStore
	validator  gateway.SourceValidator
	dispatcher port.JobDispatcher
	opts       BatchOptions
}

func DefaultBatchApp() BatchApp {
	assert.NotCircular()
	onceBatchApp.Do(func() {
		cfg := mustConfig()
		singleBatchApp = NewBatchAppWith(defaultBatchStore(cfg), defaultSourceValidator(cfg), DefaultDispatcher(), BatchOptions{
			TTL:           cfg.Batch.TTL,
			ActivityLimit: cfg.Batch.ActivityLimit,
		})
	})
	assert.NotNil(singleBatchApp)
	return singleBatchApp
}

func NewBatchAppWith(store repo.BatchStore, validator gateway.SourceValidator, dispatcher port.JobDispatcher, opts BatchOptions) BatchApp {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.ActivityLimit <= 0 {
		opts.ActivityLimit = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &batchAppImpl{
		store:      store,
		validator:  validator,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

func (b *batchAppImpl) CreateBatch(ctx context.Context, req *cqe.CreateBatchReq) (*dto.BatchCreatedDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 单个来源不合法只记录，不影响整个提交
	valid := make([]string, 0, len(req.Sources))
	var invalid []vo.InvalidSource
	for _, ref := range req.Sources {
		if err := b.validator.Validate(ctx, ref); err != nil {
			invalid = append(invalid, vo.InvalidSource{Source: ref, Reason: source.Reason(err)})
			continue
		}
		valid = append(valid, ref)
	}

	now := b.opts.Now()
	batch, err := entity.NewBatchSubmission(valid, invalid, now)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrNoValidSources, err)
	}

	if err := b.store.Create(ctx, batch, b.opts.TTL); err != nil {
		return nil, errno.NewBizError(errno.ErrUnavailable, err)
	}

	ctx = logger.WithFields(ctx, map[string]interface{}{"batch_id": batch.ID})
	log := logger.FromContext(ctx)
	b.appendActivity(ctx, batch.ID, fmt.Sprintf("Batch created with %d sources (%d invalid)", batch.TotalCount, len(invalid)))

	for _, ref := range batch.Sources {
		job := vo.VideoJob{
			JobID:       uuid.NewString(),
			Kind:        vo.JobKindBatchItem,
			BatchID:     batch.ID,
			SourceURL:   ref,
			AutoApprove: true,
			ApprovedBy:  batchApprover,
			EnqueuedAt:  now,
		}
		if err := b.dispatcher.Dispatch(ctx, job); err != nil {
			// 投递失败的来源直接记为失败，批次仍能走到 completed
			log.WithError(err).WithField("source", ref).Error("failed to dispatch batch item")
			_ = b.ReportItemOutcome(ctx, batch.ID, ref, vo.ItemFailed, "dispatch failed: "+err.Error())
		}
	}

	log.WithFields(map[string]interface{}{
		"total":   batch.TotalCount,
		"invalid": len(invalid),
	}).Info("batch submitted")
	return dto.NewBatchCreatedDto(batch), nil
}

func (b *batchAppImpl) GetStatus(ctx context.Context, batchID string) (*dto.BatchStatusDto, error) {
	if batchID == "" {
		return nil, errno.ErrBatchNotFound
	}
	batch, err := b.store.Get(ctx, batchID)
	if err != nil {
		return nil, batchError(err)
	}
	activity, err := b.store.RecentActivity(ctx, batchID, statusActivityLimit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("batch_id", batchID).Warn("failed to read batch activity")
		activity = nil
	}
	return dto.NewBatchStatusDto(batch, activity, b.opts.Now()), nil
}

func (b *batchAppImpl) ReportItemOutcome(ctx context.Context, batchID, sourceURL string, outcome vo.ItemOutcome, detail string) error {
	if !outcome.IsValid() {
		return errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("unknown item outcome %q", outcome))
	}
	log := logger.FromContext(ctx).WithFields(map[string]interface{}{
		"batch_id": batchID,
		"source":   sourceURL,
		"outcome":  string(outcome),
	})

	batch, err := b.store.IncrementOutcome(ctx, batchID, outcome)
	if errors.Is(err, entity.ErrBatchSettled) {
		log.Warn("duplicate batch item outcome ignored")
		return nil
	}
	if err != nil {
		log.WithError(err).Warn("failed to record batch item outcome")
		return batchError(err)
	}
	metrics.BatchItems.WithLabelValues(string(outcome)).Inc()

	msg := fmt.Sprintf("Processed %s: %s", sourceURL, outcome)
	if detail != "" {
		msg += " (" + detail + ")"
	}
	b.appendActivity(ctx, batchID, msg)

	if batch.Status == vo.BatchStatusCompleted {
		b.appendActivity(ctx, batchID, fmt.Sprintf("Batch completed: %d succeeded, %d failed", batch.SucceededCount, batch.FailedCount))
		log.WithFields(map[string]interface{}{
			"succeeded": batch.SucceededCount,
			"failed":    batch.FailedCount,
		}).Info("batch completed")
	}
	return nil
}

// appendActivity 活动日志写失败不影响主流程
func (b *batchAppImpl) appendActivity(ctx context.Context, batchID, message string) {
	activity := vo.BatchActivity{Timestamp: b.opts.Now(), Message: message}
	if err := b.store.AppendActivity(ctx, batchID, activity, b.opts.ActivityLimit); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("batch_id", batchID).Warn("failed to append batch activity")
	}
}

func batchError(err error) error {
	if entity.IsKind(err, entity.KindNotFound) {
		return errno.NewBizError(errno.ErrBatchNotFound, err)
	}
	var biz *errno.BizError
	if errors.As(err, &biz) {
		return err
	}
	return errno.NewBizError(errno.ErrUnavailable, err)
}
