package vo

import "time"

// BulkStats 批量操作统计
type BulkStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add 累加另一个分块的统计
func (s *BulkStats) Add(other BulkStats) {
	s.Processed += other.Processed
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

// ApproveOptions 批量审核选项
type ApproveOptions struct {
	AutoProcess bool
	ApprovedBy  string
}

// CleanupCriteria 批量清理条件
type CleanupCriteria struct {
	OlderThan              time.Duration
	Statuses               []VideoStatus
	CleanupFiles           bool
	ArchiveInsteadOfDelete bool
	// NoFiles 只清理没有生成产物的记录
	NoFiles bool
}

// DefaultCleanupCriteria 30 天前的失败记录，同时删除文件
func DefaultCleanupCriteria() CleanupCriteria {
	return CleanupCriteria{
		OlderThan:    30 * 24 * time.Hour,
		Statuses:     []VideoStatus{VideoStatusFailed},
		CleanupFiles: true,
	}
}
