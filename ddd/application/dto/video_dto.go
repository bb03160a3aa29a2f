package dto

import (
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
)

// VideoDto 视频记录
type VideoDto struct {
	VideoID               string           `json:"video_id"`
	BatchID               string           `json:"batch_id,omitempty"`
	Status                string           `json:"status"`
	Title                 string           `json:"title"`
	SourceURL             string           `json:"source_url,omitempty"`
	Scripture             string           `json:"scripture,omitempty"`
	Pastor                string           `json:"pastor,omitempty"`
	Church                string           `json:"church,omitempty"`
	VideoPath             string           `json:"video_path,omitempty"`
	ThumbnailPath         string           `json:"thumbnail_path,omitempty"`
	ExternalID            string           `json:"external_id,omitempty"`
	ExternalURL           string           `json:"external_url,omitempty"`
	RetryCount            int              `json:"retry_count"`
	ErrorMessage          string           `json:"error_message,omitempty"`
	ErrorCategory         string           `json:"error_category,omitempty"`
	ApprovedBy            string           `json:"approved_by,omitempty"`
	RejectionReason       string           `json:"rejection_reason,omitempty"`
	Metadata              vo.VideoMetadata `json:"metadata"`
	ApprovedAt            *time.Time       `json:"approved_at,omitempty"`
	ProcessingStartedAt   *time.Time       `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time       `json:"processing_completed_at,omitempty"`
	NextRetryAt           *time.Time       `json:"next_retry_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NewVideoDto 从实体创建DTO
func NewVideoDto(v *entity.VideoRecord) *VideoDto {
	if v == nil {
		return nil
	}
	s := v.Sermon()
	return &VideoDto{
		VideoID:               v.ID(),
		BatchID:               v.BatchID(),
		Status:                v.Status().String(),
		Title:                 v.PublishTitle(),
		SourceURL:             s.SourceURL,
		Scripture:             s.Scripture,
		Pastor:                s.Pastor,
		Church:                s.Church,
		VideoPath:             v.VideoPath(),
		ThumbnailPath:         v.ThumbnailPath(),
		ExternalID:            v.ExternalID(),
		ExternalURL:           v.ExternalURL(),
		RetryCount:            v.RetryCount(),
		ErrorMessage:          v.ErrorMessage(),
		ErrorCategory:         v.ErrorCategory().String(),
		ApprovedBy:            v.ApprovedBy(),
		RejectionReason:       v.RejectionReason(),
		Metadata:              v.Metadata(),
		ApprovedAt:            v.ApprovedAt(),
		ProcessingStartedAt:   v.ProcessingStartedAt(),
		ProcessingCompletedAt: v.ProcessingCompletedAt(),
		NextRetryAt:           v.NextRetryAt(),
		CreatedAt:             v.CreatedAt(),
		UpdatedAt:             v.UpdatedAt(),
	}
}
