package po

import "time"

// VideoRecord 视频记录持久化对象
type VideoRecord struct {
	BaseModel
	VideoUUID       string  `gorm:"column:video_uuid;type:varchar(36);uniqueIndex" json:"video_uuid"`
	BatchID         string  `gorm:"column:batch_id;type:varchar(36);index" json:"batch_id"`
	SourceURL       string  `gorm:"column:source_url;type:varchar(1024)" json:"source_url"`
	Title           string  `gorm:"column:title;type:varchar(255)" json:"title"`
	Scripture       string  `gorm:"column:scripture;type:text" json:"scripture"`
	Pastor          string  `gorm:"column:pastor;type:varchar(100)" json:"pastor"`
	Church          string  `gorm:"column:church;type:varchar(100)" json:"church"`
	Interpretation  string  `gorm:"column:interpretation;type:text" json:"interpretation"`
	ActionPoints    string  `gorm:"column:action_points;type:text" json:"action_points"`
	Script          string  `gorm:"column:script;type:text" json:"script"`
	Status          string  `gorm:"column:status;type:varchar(20);index" json:"status"`
	VideoPath       string  `gorm:"column:video_path;type:varchar(512)" json:"video_path"`
	ThumbnailPath   string  `gorm:"column:thumbnail_path;type:varchar(512)" json:"thumbnail_path"`
	OutputBytes     int64   `gorm:"column:output_bytes;default:0" json:"output_bytes"`
	ExternalID      *string `gorm:"column:external_id;type:varchar(64);uniqueIndex" json:"external_id,omitempty"`
	ExternalURL     string  `gorm:"column:external_url;type:varchar(255)" json:"external_url"`
	RetryCount      int     `gorm:"column:retry_count;default:0" json:"retry_count"`
	Permanent       bool    `gorm:"column:permanent;default:false" json:"permanent"`
	ErrorMessage    string  `gorm:"column:error_message;type:text" json:"error_message"`
	ErrorCategory   string  `gorm:"column:error_category;type:varchar(20)" json:"error_category"`
	ApprovedBy      string  `gorm:"column:approved_by;type:varchar(100)" json:"approved_by"`
	RejectionReason string  `gorm:"column:rejection_reason;type:varchar(500)" json:"rejection_reason"`
	Metadata        JSONMap `gorm:"column:metadata;type:text" json:"metadata"`

	ApprovedAt            *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ProcessingStartedAt   *time.Time `gorm:"column:processing_started_at;index" json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `gorm:"column:processing_completed_at" json:"processing_completed_at,omitempty"`
	FailedAt              *time.Time `gorm:"column:failed_at" json:"failed_at,omitempty"`
	NextRetryAt           *time.Time `gorm:"column:next_retry_at;index" json:"next_retry_at,omitempty"`
	LastRetryAt           *time.Time `gorm:"column:last_retry_at" json:"last_retry_at,omitempty"`
	ArchivedAt            *time.Time `gorm:"column:archived_at" json:"archived_at,omitempty"`
}

// TableName 指定表名
func (VideoRecord) TableName() string {
	return "video_records"
}
