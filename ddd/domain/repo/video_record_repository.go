package repo

import (
	"context"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
)

// VideoRecordRepository 视频记录仓储
type VideoRecordRepository interface {
	// Create 新建记录
	Create(ctx context.Context, v *entity.VideoRecord) error

	// Get 按 ID 读取，不存在返回 NotFound
	Get(ctx context.Context, id string) (*entity.VideoRecord, error)

	// Save 仅当库中状态仍为 expected 时写入，否则返回 Concurrency 错误
	Save(ctx context.Context, v *entity.VideoRecord, expected vo.VideoStatus) error

	// Delete 删除记录
	Delete(ctx context.Context, id string) error

	// FindByIDs 批量读取，不存在的 ID 被忽略
	FindByIDs(ctx context.Context, ids []string) ([]*entity.VideoRecord, error)

	// FindIDs 按条件查询 ID，按创建时间升序
	FindIDs(ctx context.Context, q VideoQuery) ([]string, error)

	// FindStuckProcessing processing 且开始时间早于 startedBefore
	FindStuckProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.VideoRecord, error)

	// FindDueForRetry failed 且 next_retry_at 已到期
	FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*entity.VideoRecord, error)

	// Transaction 在事务中执行 fn；在事务内再次调用时使用保存点
	Transaction(ctx context.Context, fn func(tx VideoRecordRepository) error) error
}

// VideoQuery 查询条件
type VideoQuery struct {
	Statuses []vo.VideoStatus
	// RetryCountBelow >0 时要求 retry_count < RetryCountBelow
	RetryCountBelow int
	CreatedBefore   *time.Time
	// WithoutArtifacts 只要没有视频文件的记录
	WithoutArtifacts bool
	Limit            int
}
