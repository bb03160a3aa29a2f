package app

import (
	"context"
	"errors"
	"os"
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
	"sermon-publisher/ddd/infrastructure/storage"
	"sermon-publisher/internal/resource"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/metrics"
)

// 批量操作名称，同时作为指标标签
const (
	BulkOpApprove        = "approve"
	BulkOpReject         = "reject"
	BulkOpRetryFailed    = "retry_failed"
	BulkOpCleanup        = "cleanup"
	BulkOpUpdateMetadata = "update_metadata"
)

const defaultOperator = "admin"

var (
	singleBulkApp BulkApp
	onceBulkApp   sync.Once
)

type BulkApp interface {
	// BulkApprove pending → approved，auto_process 时审核后投递生成任务
	BulkApprove(ctx context.Context, req *cqe.BulkApproveReq) (*dto.BulkResultDto, error)
	// BulkReject pending → rejected
	BulkReject(ctx context.Context, req *cqe.BulkRejectReq) (*dto.BulkResultDto, error)
	// BulkRetryFailed 未达重试上限的失败记录重置为 pending 并重新投递
	BulkRetryFailed(ctx context.Context, req *cqe.BulkRetryReq) (*dto.BulkResultDto, error)
	// BulkCleanup 删除或归档符合条件的记录，尽力删除本地产物
	BulkCleanup(ctx context.Context, req *cqe.BulkCleanupReq) (*dto.BulkResultDto, error)
	// BulkUpdateMetadata 修改白名单内的展示元数据
	BulkUpdateMetadata(ctx context.Context, req *cqe.BulkUpdateMetadataReq) (*dto.BulkResultDto, error)
}

// BulkOptions 批量操作参数
type BulkOptions struct {
	ChunkSize int
	Now       func() time.Time
}

type bulkAppImpl struct {
	videos     repo.VideoRecordRepository
	dispatcher port.JobDispatcher
	storage    gateway.ArtifactStorage
	opts       BulkOptions

	// 同一进程内同时只运行一个批量操作
	running sync.Mutex
}

func DefaultBulkApp() BulkApp {
	assert.NotCircular()
	onceBulkApp.Do(func() {
		cfg := mustConfig()
		singleBulkApp = NewBulkAppWith(
			defaultVideoRepo(),
			DefaultDispatcher(),
			storage.NewMinioStorageFromResource(resource.DefaultMinioResource()),
			BulkOptions{ChunkSize: cfg.Bulk.ChunkSize},
		)
	})
	assert.NotNil(singleBulkApp)
	return singleBulkApp
}

// NewBulkAppWith storage 可以为 nil
func NewBulkAppWith(videos repo.VideoRecordRepository, dispatcher port.JobDispatcher, store gateway.ArtifactStorage, opts BulkOptions) BulkApp {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &bulkAppImpl{
		videos:     videos,
		dispatcher: dispatcher,
		storage:    store,
		opts:       opts,
	}
}

type itemResult int

const (
	itemProcessed itemResult = iota
	itemSkipped
)

// sideEffects 事务提交后才执行的动作
type sideEffects struct {
	jobs       []vo.VideoJob
	files      []string
	remoteKeys []string
}

func (s *sideEffects) merge(other *sideEffects) {
	s.jobs = append(s.jobs, other.jobs...)
	s.files = append(s.files, other.files...)
	s.remoteKeys = append(s.remoteKeys, other.remoteKeys...)
}

// itemFunc 在单条记录的保存点内执行，返回错误时该记录的修改回滚
type itemFunc func(ctx context.Context, tx repo.VideoRecordRepository, v *entity.VideoRecord, fx *sideEffects) (itemResult, error)

func (b *bulkAppImpl) BulkApprove(ctx context.Context, req *cqe.BulkApproveReq) (*dto.BulkResultDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := req.Options()
	if opts.ApprovedBy == "" {
		opts.ApprovedBy = operatorFrom(ctx)
	}
	now := b.opts.Now()
	return b.exclusive(ctx, BulkOpApprove, func(ctx context.Context) vo.BulkStats {
		return b.run(ctx, BulkOpApprove, req.VideoIDs, func(ctx context.Context, tx repo.VideoRecordRepository, v *entity.VideoRecord, fx *sideEffects) (itemResult, error) {
			from := v.Status()
			if err := v.Approve(opts.ApprovedBy, now); err != nil {
				return 0, err
			}
			if err := tx.Save(ctx, v, from); err != nil {
				return 0, err
			}
			if opts.AutoProcess {
				fx.jobs = append(fx.jobs, videoJob(v.ID(), false, opts.ApprovedBy, now))
			}
			return itemProcessed, nil
		})
	})
}

func (b *bulkAppImpl) BulkReject(ctx context.Context, req *cqe.BulkRejectReq) (*dto.BulkResultDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := b.opts.Now()
	return b.exclusive(ctx, BulkOpReject, func(ctx context.Context) vo.BulkStats {
		return b.run(ctx, BulkOpReject, req.VideoIDs, func(ctx context.Context, tx repo.VideoRecordRepository, v *entity.VideoRecord, _ *sideEffects) (itemResult, error) {
			from := v.Status()
			if err := v.Reject(req.Reason, now); err != nil {
				return 0, err
			}
			if err := tx.Save(ctx, v, from); err != nil {
				return 0, err
			}
			return itemProcessed, nil
		})
	})
}

func (b *bulkAppImpl) BulkRetryFailed(ctx context.Context, req *cqe.BulkRetryReq) (*dto.BulkResultDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ids, err := b.videos.FindIDs(ctx, repo.VideoQuery{
		Statuses:        []vo.VideoStatus{vo.VideoStatusFailed},
		RetryCountBelow: req.MaxRetries,
	})
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	operator := operatorFrom(ctx)
	now := b.opts.Now()
	return b.exclusive(ctx, BulkOpRetryFailed, func(ctx context.Context) vo.BulkStats {
		return b.run(ctx, BulkOpRetryFailed, ids, func(ctx context.Context, tx repo.VideoRecordRepository, v *entity.VideoRecord, fx *sideEffects) (itemResult, error) {
			if v.Permanent() {
				return itemSkipped, nil
			}
			if err := v.RetryReset(req.MaxRetries, now); err != nil {
				return 0, err
			}
			if err := tx.Save(ctx, v, vo.VideoStatusFailed); err != nil {
				return 0, err
			}
			// 重置后停在 pending，由任务消费端审核后开始生成
			fx.jobs = append(fx.jobs, videoJob(v.ID(), true, operator, now))
			return itemProcessed, nil
		})
	})
}

func (b *bulkAppImpl) BulkCleanup(ctx context.Context, req *cqe.BulkCleanupReq) (*dto.BulkResultDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	criteria := req.Criteria()
	now := b.opts.Now()
	cutoff := now.Add(-criteria.OlderThan)
	ids, err := b.videos.FindIDs(ctx, repo.VideoQuery{
		Statuses:         criteria.Statuses,
		CreatedBefore:    &cutoff,
		WithoutArtifacts: criteria.NoFiles,
	})
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return b.exclusive(ctx, BulkOpCleanup, func(ctx context.Context) vo.BulkStats {
		return b.run(ctx, BulkOpCleanup, ids, func(ctx context.Context, tx repo.VideoRecordRepository, v *entity.VideoRecord, fx *sideEffects) (itemResult, error) {
			// 生成中的记录不动
			if v.Status() == vo.VideoStatusProcessing {
				return itemSkipped, nil
			}
			if criteria.ArchiveInsteadOfDelete {
				if v.Status() != vo.VideoStatusUploaded {
					return itemSkipped, nil
				}
				if err := v.Archive(now); err != nil {
					return 0, err
				}
				if err := tx.Save(ctx, v, vo.VideoStatusUploaded); err != nil {
					return 0, err
				}
			} else {
				if err := tx.Delete(ctx, v.ID()); err != nil {
					return 0, err
				}
				if v.ExternalID() != "" {
					for _, p := range []string{v.VideoPath(), v.ThumbnailPath()} {
						if p != "" {
							fx.remoteKeys = append(fx.remoteKeys, gateway.ArtifactKey(v.ID(), p))
						}
					}
				}
			}
			if criteria.CleanupFiles {
				for _, p := range []string{v.VideoPath(), v.ThumbnailPath()} {
					if p != "" {
						fx.files = append(fx.files, p)
					}
				}
			}
			return itemProcessed, nil
		})
	})
}

func (b *bulkAppImpl) BulkUpdateMetadata(ctx context.Context, req *cqe.BulkUpdateMetadataReq) (*dto.BulkResultDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := b.opts.Now()
	return b.exclusive(ctx, BulkOpUpdateMetadata, func(ctx context.Context) vo.BulkStats {
		return b.run(ctx, BulkOpUpdateMetadata, req.VideoIDs, func(ctx context.Context, tx repo.VideoRecordRepository, v *entity.VideoRecord, _ *sideEffects) (itemResult, error) {
			if err := v.UpdateMetadata(req.Fields, now); err != nil {
				return 0, err
			}
			if err := tx.Save(ctx, v, v.Status()); err != nil {
				return 0, err
			}
			return itemProcessed, nil
		})
	})
}

// exclusive 已有批量操作在运行时直接拒绝
func (b *bulkAppImpl) exclusive(ctx context.Context, op string, fn func(ctx context.Context) vo.BulkStats) (*dto.BulkResultDto, error) {
	if !b.running.TryLock() {
		return nil, errno.ErrBulkOperationLocked
	}
	defer b.running.Unlock()

	ctx = logger.WithFields(ctx, map[string]interface{}{"bulk_operation": op})
	started := time.Now()
	stats := fn(ctx)
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"processed": stats.Processed,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
		"elapsed":   time.Since(started).String(),
	}).Info("bulk operation finished")
	return dto.NewBulkResultDto(op, stats), nil
}

// run 按分块执行，每块一个事务，每条记录一个保存点。
// 单条失败只计数，不影响同一块内其他记录的提交。
func (b *bulkAppImpl) run(ctx context.Context, op string, ids []string, fn itemFunc) vo.BulkStats {
	log := logger.FromContext(ctx)
	var total vo.BulkStats

	for start := 0; start < len(ids); start += b.opts.ChunkSize {
		end := start + b.opts.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		if err := ctx.Err(); err != nil {
			log.WithError(err).WithField("remaining", len(ids)-start).Warn("bulk operation cancelled")
			total.Skipped += len(ids) - start
			metrics.BulkItems.WithLabelValues(op, "skipped").Add(float64(len(ids) - start))
			break
		}

		var stats vo.BulkStats
		var effects *sideEffects
		err := b.videos.Transaction(ctx, func(tx repo.VideoRecordRepository) error {
			stats, effects = vo.BulkStats{}, &sideEffects{}
			records, err := tx.FindByIDs(ctx, chunk)
			if err != nil {
				return err
			}
			byID := make(map[string]*entity.VideoRecord, len(records))
			for _, v := range records {
				byID[v.ID()] = v
			}

			for _, id := range chunk {
				v, ok := byID[id]
				if !ok {
					stats.Failed++
					log.WithField("video_id", id).Warn("bulk item not found")
					continue
				}
				staged := &sideEffects{}
				var result itemResult
				err := tx.Transaction(ctx, func(item repo.VideoRecordRepository) error {
					var itemErr error
					result, itemErr = fn(ctx, item, v, staged)
					return itemErr
				})
				if err != nil {
					stats.Failed++
					log.WithError(err).WithField("video_id", id).Warn("bulk item failed")
					continue
				}
				effects.merge(staged)
				if result == itemSkipped {
					stats.Skipped++
				} else {
					stats.Processed++
				}
			}
			return nil
		})
		if err != nil {
			// 整块回滚
			log.WithError(err).WithFields(map[string]interface{}{
				"chunk_start": start,
				"chunk_size":  len(chunk),
			}).Error("bulk chunk transaction failed")
			stats, effects = vo.BulkStats{Failed: len(chunk)}, nil
		}

		metrics.BulkItems.WithLabelValues(op, "processed").Add(float64(stats.Processed))
		metrics.BulkItems.WithLabelValues(op, "failed").Add(float64(stats.Failed))
		metrics.BulkItems.WithLabelValues(op, "skipped").Add(float64(stats.Skipped))
		total.Add(stats)

		if effects != nil {
			b.apply(ctx, effects)
		}
	}
	return total
}

// apply 提交后的动作失败只记录日志
func (b *bulkAppImpl) apply(ctx context.Context, fx *sideEffects) {
	log := logger.FromContext(ctx)
	for _, job := range fx.jobs {
		if err := b.dispatcher.Dispatch(ctx, job); err != nil {
			log.WithError(err).WithField("video_id", job.VideoID).Error("failed to dispatch video job")
		}
	}
	for _, p := range fx.files {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", p).Warn("failed to remove artifact file")
		}
	}
	if b.storage == nil {
		return
	}
	for _, key := range fx.remoteKeys {
		if err := b.storage.RemoveArtifact(ctx, key); err != nil {
			log.WithError(err).WithField("object_key", key).Warn("failed to remove archived artifact")
		}
	}
}

func videoJob(videoID string, autoApprove bool, approvedBy string, now time.Time) vo.VideoJob {
	return vo.VideoJob{
		JobID:       uuid.NewString(),
		Kind:        vo.JobKindVideo,
		VideoID:     videoID,
		AutoApprove: autoApprove,
		ApprovedBy:  approvedBy,
		EnqueuedAt:  now,
	}
}

// operatorFrom 管理令牌或请求头中的操作人
func operatorFrom(ctx context.Context) string {
	if op := logger.Field(ctx, "operator"); op != "" {
		return op
	}
	return defaultOperator
}
