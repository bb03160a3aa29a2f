package dto

import (
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
)

// BatchCreatedDto 批量提交结果
type BatchCreatedDto struct {
	BatchID        string             `json:"batch_id"`
	TotalCount     int                `json:"total_count"`
	InvalidSources []vo.InvalidSource `json:"invalid_sources,omitempty"`
	Status         string             `json:"status"`
}

func NewBatchCreatedDto(b *entity.BatchSubmission) *BatchCreatedDto {
	if b == nil {
		return nil
	}
	return &BatchCreatedDto{
		BatchID:        b.ID,
		TotalCount:     b.TotalCount,
		InvalidSources: b.InvalidSources,
		Status:         b.Status.String(),
	}
}

// BatchStatusDto 批次进度
type BatchStatusDto struct {
	BatchID             string             `json:"batch_id"`
	Status              string             `json:"status"`
	TotalCount          int                `json:"total_count"`
	ProcessedCount      int                `json:"processed_count"`
	SucceededCount      int                `json:"succeeded_count"`
	FailedCount         int                `json:"failed_count"`
	ProgressPercentage  float64            `json:"progress_percentage"`
	EstimatedCompletion *time.Time         `json:"estimated_completion,omitempty"`
	InvalidSources      []vo.InvalidSource `json:"invalid_sources,omitempty"`
	RecentActivity      []vo.BatchActivity `json:"recent_activity"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// NewBatchStatusDto now 用于计算预计完成时间
func NewBatchStatusDto(b *entity.BatchSubmission, activity []vo.BatchActivity, now time.Time) *BatchStatusDto {
	if b == nil {
		return nil
	}
	if activity == nil {
		activity = []vo.BatchActivity{}
	}
	return &BatchStatusDto{
		BatchID:             b.ID,
		Status:              b.Status.String(),
		TotalCount:          b.TotalCount,
		ProcessedCount:      b.ProcessedCount,
		SucceededCount:      b.SucceededCount,
		FailedCount:         b.FailedCount,
		ProgressPercentage:  b.ProgressPercentage(),
		EstimatedCompletion: b.EstimatedCompletion(now),
		InvalidSources:      b.InvalidSources,
		RecentActivity:      activity,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}
