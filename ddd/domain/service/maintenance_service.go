package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/metrics"
)

// AutoRetryApprover 自动重试时记录的审核人
const AutoRetryApprover = "system:auto-retry"

const maintenanceBatchSize = 100

// MaintenanceService 后台维护：处理超时的生成、到期的自动重试
type MaintenanceService interface {
	// SweepStuck 把 processing 超时的记录标记为 failed/timeout
	SweepStuck(ctx context.Context) (int, error)
	// RescheduleDue 到期的失败记录重置、自动审核并重新投递
	RescheduleDue(ctx context.Context) (int, error)
}

// MaintenanceOptions 维护参数
type MaintenanceOptions struct {
	// StuckAfter processing 超过该时长视为卡住
	StuckAfter     time.Duration
	RetryBaseDelay time.Duration
	MaxRetries     int
	Now            func() time.Time
}

type maintenanceService struct {
	videos     repo.VideoRecordRepository
	dispatcher port.JobDispatcher
	opts       MaintenanceOptions
}

func NewMaintenanceService(videos repo.VideoRecordRepository, dispatcher port.JobDispatcher, opts MaintenanceOptions) MaintenanceService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = vo.MaxRetryCount
	}
	return &maintenanceService{videos: videos, dispatcher: dispatcher, opts: opts}
}

func (s *maintenanceService) SweepStuck(ctx context.Context) (int, error) {
	now := s.opts.Now()
	records, err := s.videos.FindStuckProcessing(ctx, now.Add(-s.opts.StuckAfter), maintenanceBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, v := range records {
		if !v.IsStuck(now, s.opts.StuckAfter) {
			continue
		}
		failure := entity.Failure{
			Message:  fmt.Sprintf("processing timeout: no result after %s", s.opts.StuckAfter),
			Category: vo.ErrorCategoryTimeout,
		}
		if err := v.Fail(failure, now); err != nil {
			continue
		}
		v.ScheduleRetry(s.opts.RetryBaseDelay)
		if err := s.videos.Save(ctx, v, vo.VideoStatusProcessing); err != nil {
			// 处理者已经在扫描期间写回了结果
			if entity.IsKind(err, entity.KindConcurrency) {
				continue
			}
			return swept, err
		}
		metrics.VideoFailures.WithLabelValues(vo.ErrorCategoryTimeout.String()).Inc()
		logger.Warn("stuck video marked as failed", map[string]interface{}{
			"video_id":    v.ID(),
			"retry_count": v.RetryCount(),
		})
		swept++
	}
	return swept, nil
}

func (s *maintenanceService) RescheduleDue(ctx context.Context) (int, error) {
	now := s.opts.Now()
	records, err := s.videos.FindDueForRetry(ctx, now, maintenanceBatchSize)
	if err != nil {
		return 0, err
	}

	rescheduled := 0
	for _, v := range records {
		if err := v.RetryReset(s.opts.MaxRetries, now); err != nil {
			continue
		}
		if err := v.Approve(AutoRetryApprover, now); err != nil {
			continue
		}
		if err := s.videos.Save(ctx, v, vo.VideoStatusFailed); err != nil {
			if entity.IsKind(err, entity.KindConcurrency) {
				continue
			}
			return rescheduled, err
		}
		job := vo.VideoJob{
			JobID:      uuid.NewString(),
			Kind:       vo.JobKindVideo,
			VideoID:    v.ID(),
			ApprovedBy: AutoRetryApprover,
			EnqueuedAt: now,
		}
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			logger.Error("failed to dispatch auto retry", map[string]interface{}{
				"video_id": v.ID(),
				"error":    err.Error(),
			})
			continue
		}
		rescheduled++
	}
	return rescheduled, nil
}
