package service

import (
	"context"
	"fmt"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/gateway"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/metrics"
)

// VideoPipelineService 驱动单条视频记录：审核 → 生成 → 发布 → 完成或失败
type VideoPipelineService interface {
	// Process 执行一次完整流水线。失败时记录已经迁移到 failed 并返回原因。
	Process(ctx context.Context, videoID string, opts ProcessOptions) (*entity.VideoRecord, error)
}

// ProcessOptions 单次处理选项
type ProcessOptions struct {
	// AutoApprove pending 记录先自动审核
	AutoApprove bool
	ApprovedBy  string
}

// PipelineOptions 流水线参数
type PipelineOptions struct {
	PublishDefaults vo.PublishDefaults
	RetryBaseDelay  time.Duration
	Now             func() time.Time
}

type videoPipelineService struct {
	videos       repo.VideoRecordRepository
	orchestrator GenerationOrchestrator
	publisher    gateway.VideoPublisher
	storage      gateway.ArtifactStorage
	opts         PipelineOptions
}

// NewVideoPipelineService storage 可以为 nil，此时不归档产物
func NewVideoPipelineService(videos repo.VideoRecordRepository, orchestrator GenerationOrchestrator, publisher gateway.VideoPublisher, storage gateway.ArtifactStorage, opts PipelineOptions) VideoPipelineService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &videoPipelineService{
		videos:       videos,
		orchestrator: orchestrator,
		publisher:    publisher,
		storage:      storage,
		opts:         opts,
	}
}

func (s *videoPipelineService) Process(ctx context.Context, videoID string, opts ProcessOptions) (*entity.VideoRecord, error) {
	ctx = logger.WithFields(ctx, map[string]interface{}{"video_id": videoID})
	log := logger.FromContext(ctx)

	v, err := s.videos.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if opts.AutoApprove && v.Status() == vo.VideoStatusPending {
		if err := s.transition(ctx, v, func(now time.Time) error { return v.Approve(opts.ApprovedBy, now) }); err != nil {
			return v, err
		}
	}

	// approved → processing 的 CAS 保证同一记录只有一个处理者
	if err := s.transition(ctx, v, v.Start); err != nil {
		return v, err
	}

	started := time.Now()
	artifacts, err := s.orchestrator.Generate(ctx, GenerationRequestFor(v))
	metrics.GenerationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return v, s.fail(ctx, v, err)
	}

	if err := v.RecordArtifacts(artifacts, s.opts.Now()); err != nil {
		return v, s.fail(ctx, v, err)
	}
	if err := v.BeginPublish(s.opts.Now()); err != nil {
		return v, s.fail(ctx, v, err)
	}
	if err := s.videos.Save(ctx, v, vo.VideoStatusProcessing); err != nil {
		return v, err
	}

	result, err := s.publisher.Publish(ctx, v.VideoPath(), s.publishMetadata(v))
	if err != nil {
		return v, s.fail(ctx, v, err)
	}

	if err := s.transition(ctx, v, func(now time.Time) error { return v.Complete(result, now) }); err != nil {
		if entity.IsKind(err, entity.KindConcurrency) {
			s.recordLatePublish(ctx, v.ID(), result)
		}
		return v, err
	}
	s.archive(ctx, v)

	log.WithField("external_id", result.ExternalID).Info("video published")
	return v, nil
}

// transition 执行迁移并以迁移前的状态为条件保存
func (s *videoPipelineService) transition(ctx context.Context, v *entity.VideoRecord, apply func(now time.Time) error) error {
	from := v.Status()
	if err := apply(s.opts.Now()); err != nil {
		return err
	}
	if err := s.videos.Save(ctx, v, from); err != nil {
		return err
	}
	metrics.VideoTransitions.WithLabelValues(v.Status().String()).Inc()
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"from": from.String(),
		"to":   v.Status().String(),
	}).Info("video status changed")
	return nil
}

// fail processing → failed，并按重试次数安排下一次自动重试
func (s *videoPipelineService) fail(ctx context.Context, v *entity.VideoRecord, cause error) error {
	failure := entity.FailureFromError(cause)
	now := s.opts.Now()
	if err := v.Fail(failure, now); err != nil {
		return fmt.Errorf("%w (while recording failure: %v)", cause, err)
	}
	if s.opts.RetryBaseDelay > 0 {
		v.ScheduleRetry(s.opts.RetryBaseDelay)
	}

	// 上游 ctx 可能已被取消，失败状态仍需落库
	saveCtx := context.WithoutCancel(ctx)
	if err := s.videos.Save(saveCtx, v, vo.VideoStatusProcessing); err != nil {
		return fmt.Errorf("%w (while saving failure: %v)", cause, err)
	}
	metrics.VideoTransitions.WithLabelValues(v.Status().String()).Inc()
	metrics.VideoFailures.WithLabelValues(v.ErrorCategory().String()).Inc()

	entry := logger.FromContext(ctx).WithFields(map[string]interface{}{
		"category":    v.ErrorCategory().String(),
		"retry_count": v.RetryCount(),
		"permanent":   v.Permanent(),
	})
	if next := v.NextRetryAt(); next != nil {
		entry = entry.WithField("next_retry_at", next.Format(time.RFC3339))
	}
	entry.WithError(cause).Warn("video processing failed")
	return cause
}

// recordLatePublish 上传期间记录已被其他处理者改写（通常是超时清扫），保留外部 ID 并取消自动重试
func (s *videoPipelineService) recordLatePublish(ctx context.Context, videoID string, result vo.PublishResult) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx).WithFields(map[string]interface{}{
		"external_id":  result.ExternalID,
		"external_url": result.ExternalURL,
	})
	current, err := s.videos.Get(ctx, videoID)
	if err != nil {
		log.WithError(err).Error("video published but record could not be reloaded")
		return
	}
	if err := current.RecordLatePublish(result, s.opts.Now()); err != nil {
		log.WithError(err).WithField("status", current.Status().String()).Error("video published but record is not failed")
		return
	}
	if err := s.videos.Save(ctx, current, vo.VideoStatusFailed); err != nil {
		log.WithError(err).Error("video published but late result could not be saved")
		return
	}
	log.Warn("video published after being marked failed, automatic retry cancelled")
}

// publishMetadata 管理员修改过的描述和标签优先
func (s *videoPipelineService) publishMetadata(v *entity.VideoRecord) vo.PublishMetadata {
	meta := vo.BuildPublishMetadata(v.Sermon(), v.PublishTitle(), s.opts.PublishDefaults)
	m := v.Metadata()
	if m.Description != "" {
		meta.Description = vo.Truncate(m.Description, vo.MaxDescriptionLength)
	}
	if len(m.Tags) > 0 {
		meta.Tags = vo.NormalizeTags(m.Tags)
	}
	return meta
}

// archive 归档失败只记录日志
func (s *videoPipelineService) archive(ctx context.Context, v *entity.VideoRecord) {
	if s.storage == nil {
		return
	}
	log := logger.FromContext(ctx)
	key := gateway.ArtifactKey(v.ID(), v.VideoPath())
	if _, err := s.storage.ArchiveArtifact(ctx, v.VideoPath(), key, "video/mp4"); err != nil {
		log.WithError(err).Warn("failed to archive video artifact")
	}
	if v.ThumbnailPath() != "" {
		key = gateway.ArtifactKey(v.ID(), v.ThumbnailPath())
		if _, err := s.storage.ArchiveArtifact(ctx, v.ThumbnailPath(), key, "image/jpeg"); err != nil {
			log.WithError(err).Warn("failed to archive thumbnail")
		}
	}
}
