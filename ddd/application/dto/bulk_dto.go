package dto

import "sermon-publisher/ddd/domain/vo"

// BulkResultDto 批量操作结果
type BulkResultDto struct {
	Operation string `json:"operation"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

func NewBulkResultDto(operation string, stats vo.BulkStats) *BulkResultDto {
	return &BulkResultDto{
		Operation: operation,
		Processed: stats.Processed,
		Failed:    stats.Failed,
		Skipped:   stats.Skipped,
	}
}
