package repo

import (
	"context"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
)

// BatchStore 批量提交的缓存存储。计数只能通过原子增量修改，不能读出整体再写回。
type BatchStore interface {
	// Create 写入新批次并设置 TTL
	Create(ctx context.Context, b *entity.BatchSubmission, ttl time.Duration) error

	// Get 读取批次，不存在或已过期返回 NotFound
	Get(ctx context.Context, id string) (*entity.BatchSubmission, error)

	// IncrementOutcome 原子地 processed+1 以及 succeeded/failed+1，返回更新后的批次。
	// processed 已达 total 时不修改，返回包装 entity.ErrBatchSettled 的错误
	IncrementOutcome(ctx context.Context, id string, outcome vo.ItemOutcome) (*entity.BatchSubmission, error)

	// AppendActivity 追加活动日志，只保留最近 limit 条
	AppendActivity(ctx context.Context, id string, activity vo.BatchActivity, limit int) error

	// RecentActivity 最新的在前
	RecentActivity(ctx context.Context, id string, limit int) ([]vo.BatchActivity, error)
}
