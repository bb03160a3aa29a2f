package convertor

import (
	"encoding/json"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/database/po"
)

// VideoRecordConvertor 视频记录转换器
type VideoRecordConvertor struct{}

func NewVideoRecordConvertor() *VideoRecordConvertor {
	return &VideoRecordConvertor{}
}

// ToPO 将Entity转换为PO
func (c *VideoRecordConvertor) ToPO(v *entity.VideoRecord) (*po.VideoRecord, error) {
	s := v.State()
	meta, err := metadataToMap(s.Metadata)
	if err != nil {
		return nil, err
	}
	var externalID *string
	if s.ExternalID != "" {
		id := s.ExternalID
		externalID = &id
	}
	return &po.VideoRecord{
		BaseModel: po.BaseModel{
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		VideoUUID:             s.ID,
		BatchID:               s.BatchID,
		SourceURL:             s.Sermon.SourceURL,
		Title:                 s.Sermon.Title,
		Scripture:             s.Sermon.Scripture,
		Pastor:                s.Sermon.Pastor,
		Church:                s.Sermon.Church,
		Interpretation:        s.Sermon.Interpretation,
		ActionPoints:          s.Sermon.ActionPoints,
		Script:                s.Script,
		Status:                s.Status.String(),
		VideoPath:             s.VideoPath,
		ThumbnailPath:         s.ThumbnailPath,
		OutputBytes:           s.OutputBytes,
		ExternalID:            externalID,
		ExternalURL:           s.ExternalURL,
		RetryCount:            s.RetryCount,
		Permanent:             s.Permanent,
		ErrorMessage:          s.ErrorMessage,
		ErrorCategory:         s.ErrorCategory.String(),
		ApprovedBy:            s.ApprovedBy,
		RejectionReason:       s.RejectionReason,
		Metadata:              meta,
		ApprovedAt:            s.ApprovedAt,
		ProcessingStartedAt:   s.ProcessingStartedAt,
		ProcessingCompletedAt: s.ProcessingCompletedAt,
		FailedAt:              s.FailedAt,
		NextRetryAt:           s.NextRetryAt,
		LastRetryAt:           s.LastRetryAt,
		ArchivedAt:            s.ArchivedAt,
	}, nil
}

// ToEntity 将PO转换为Entity，未知状态按 failed 处理以免被继续推进
func (c *VideoRecordConvertor) ToEntity(p *po.VideoRecord) (*entity.VideoRecord, error) {
	meta, err := mapToMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}
	status, ok := vo.ParseVideoStatus(p.Status)
	if !ok {
		status = vo.VideoStatusFailed
	}
	externalID := ""
	if p.ExternalID != nil {
		externalID = *p.ExternalID
	}
	return entity.RestoreVideoRecord(entity.VideoRecordState{
		ID:      p.VideoUUID,
		BatchID: p.BatchID,
		Sermon: vo.SermonContent{
			SourceURL:      p.SourceURL,
			Title:          p.Title,
			Scripture:      p.Scripture,
			Pastor:         p.Pastor,
			Church:         p.Church,
			Interpretation: p.Interpretation,
			ActionPoints:   p.ActionPoints,
		},
		Script:                p.Script,
		Status:                status,
		VideoPath:             p.VideoPath,
		ThumbnailPath:         p.ThumbnailPath,
		OutputBytes:           p.OutputBytes,
		ExternalID:            externalID,
		ExternalURL:           p.ExternalURL,
		RetryCount:            p.RetryCount,
		Permanent:             p.Permanent,
		ErrorMessage:          p.ErrorMessage,
		ErrorCategory:         vo.ErrorCategory(p.ErrorCategory),
		ApprovedBy:            p.ApprovedBy,
		RejectionReason:       p.RejectionReason,
		Metadata:              meta,
		ApprovedAt:            p.ApprovedAt,
		ProcessingStartedAt:   p.ProcessingStartedAt,
		ProcessingCompletedAt: p.ProcessingCompletedAt,
		FailedAt:              p.FailedAt,
		NextRetryAt:           p.NextRetryAt,
		LastRetryAt:           p.LastRetryAt,
		ArchivedAt:            p.ArchivedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}), nil
}

// ToEntityList 批量转换
func (c *VideoRecordConvertor) ToEntityList(list []*po.VideoRecord) ([]*entity.VideoRecord, error) {
	out := make([]*entity.VideoRecord, 0, len(list))
	for _, p := range list {
		v, err := c.ToEntity(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ToUpdateColumns 条件更新时写入的全部可变列
func (c *VideoRecordConvertor) ToUpdateColumns(p *po.VideoRecord) map[string]interface{} {
	return map[string]interface{}{
		"script":                  p.Script,
		"status":                  p.Status,
		"video_path":              p.VideoPath,
		"thumbnail_path":          p.ThumbnailPath,
		"output_bytes":            p.OutputBytes,
		"external_id":             p.ExternalID,
		"external_url":            p.ExternalURL,
		"retry_count":             p.RetryCount,
		"permanent":               p.Permanent,
		"error_message":           p.ErrorMessage,
		"error_category":          p.ErrorCategory,
		"approved_by":             p.ApprovedBy,
		"rejection_reason":        p.RejectionReason,
		"metadata":                p.Metadata,
		"approved_at":             p.ApprovedAt,
		"processing_started_at":   p.ProcessingStartedAt,
		"processing_completed_at": p.ProcessingCompletedAt,
		"failed_at":               p.FailedAt,
		"next_retry_at":           p.NextRetryAt,
		"last_retry_at":           p.LastRetryAt,
		"archived_at":             p.ArchivedAt,
		"updated_at":              p.UpdatedAt,
	}
}

func metadataToMap(m vo.VideoMetadata) (po.JSONMap, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := po.JSONMap{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mapToMetadata(m po.JSONMap) (vo.VideoMetadata, error) {
	var meta vo.VideoMetadata
	if len(m) == 0 {
		return meta, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}
