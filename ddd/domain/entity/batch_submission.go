package entity

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"sermon-publisher/ddd/domain/vo"
)

// BatchSubmission 批量提交的聚合计数，只存在于缓存中，TTL 到期后不可读
type BatchSubmission struct {
	ID             string
	Sources        []string
	InvalidSources []vo.InvalidSource
	Status         vo.BatchStatus
	TotalCount     int
	ProcessedCount int
	SucceededCount int
	FailedCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBatchSubmission 至少需要一个有效来源
func NewBatchSubmission(valid []string, invalid []vo.InvalidSource, now time.Time) (*BatchSubmission, error) {
	if len(valid) == 0 {
		return nil, NewValidationError("create batch", errors.New("no valid source references"))
	}
	return &BatchSubmission{
		ID:             uuid.NewString(),
		Sources:        append([]string(nil), valid...),
		InvalidSources: append([]vo.InvalidSource(nil), invalid...),
		Status:         vo.BatchStatusStarted,
		TotalCount:     len(valid),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// InvalidSourceRefs 被拒绝的原始来源
func (b *BatchSubmission) InvalidSourceRefs() []string {
	out := make([]string, 0, len(b.InvalidSources))
	for _, inv := range b.InvalidSources {
		out = append(out, inv.Source)
	}
	return out
}

// ErrBatchSettled 批次所有条目都已有结果，多出来的汇报（例如消息重投）不再计数
var ErrBatchSettled = errors.New("batch already has an outcome for every item")

// ApplyOutcome 单写者场景下累加一次结果（内存存储在锁内调用）。已满 total 时返回 false 且不修改
func (b *BatchSubmission) ApplyOutcome(outcome vo.ItemOutcome, now time.Time) bool {
	if b.ProcessedCount >= b.TotalCount {
		return false
	}
	b.ProcessedCount++
	if outcome == vo.ItemSucceeded {
		b.SucceededCount++
	} else {
		b.FailedCount++
	}
	b.Status = StatusForCounts(b.TotalCount, b.ProcessedCount)
	b.UpdatedAt = now
	return true
}

// StatusForCounts 已处理数决定批次状态
func StatusForCounts(total, processed int) vo.BatchStatus {
	switch {
	case processed <= 0:
		return vo.BatchStatusStarted
	case processed >= total:
		return vo.BatchStatusCompleted
	default:
		return vo.BatchStatusProcessing
	}
}

// ProgressPercentage total 为 0 时返回 0，结果保留两位小数
func (b *BatchSubmission) ProgressPercentage() float64 {
	if b.TotalCount <= 0 {
		return 0
	}
	pct := float64(b.ProcessedCount) / float64(b.TotalCount) * 100
	return math.Round(pct*100) / 100
}

// EstimatedCompletion now + 剩余数 / 处理速率；尚未处理或已完成时返回 nil
func (b *BatchSubmission) EstimatedCompletion(now time.Time) *time.Time {
	if b.ProcessedCount == 0 || b.Status == vo.BatchStatusCompleted {
		return nil
	}
	remaining := b.TotalCount - b.ProcessedCount
	if remaining <= 0 {
		return nil
	}
	elapsed := now.Sub(b.CreatedAt).Seconds()
	if elapsed <= 0 {
		return nil
	}
	// 剩余数 / (已处理数 / 已用秒数)
	secs := elapsed * float64(remaining) / float64(b.ProcessedCount)
	eta := now.Add(time.Duration(secs * float64(time.Second)))
	return &eta
}
