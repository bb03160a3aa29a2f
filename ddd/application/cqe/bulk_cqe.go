package cqe

import (
	"fmt"
	"strings"
	"time"

	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/errno"
)

// BulkApproveReq 批量审核
type BulkApproveReq struct {
	VideoIDs    []string `json:"video_ids" binding:"required"`
	AutoProcess bool     `json:"auto_process"` // 审核后立即投递生成任务
	ApprovedBy  string   `json:"approved_by"`
}

func (req *BulkApproveReq) Validate() error {
	ids, err := normalizeIDs(req.VideoIDs)
	if err != nil {
		return err
	}
	req.VideoIDs = ids
	req.ApprovedBy = strings.TrimSpace(req.ApprovedBy)
	return nil
}

// Options 转为领域选项
func (req *BulkApproveReq) Options() vo.ApproveOptions {
	return vo.ApproveOptions{AutoProcess: req.AutoProcess, ApprovedBy: req.ApprovedBy}
}

// BulkRejectReq 批量驳回
type BulkRejectReq struct {
	VideoIDs []string `json:"video_ids" binding:"required"`
	Reason   string   `json:"reason"`
}

func (req *BulkRejectReq) Validate() error {
	ids, err := normalizeIDs(req.VideoIDs)
	if err != nil {
		return err
	}
	req.VideoIDs = ids
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		req.Reason = "Bulk rejection"
	}
	return nil
}

// BulkRetryReq 批量重试失败记录
type BulkRetryReq struct {
	MaxRetries int `json:"max_retries"`
}

func (req *BulkRetryReq) Validate() error {
	if req.MaxRetries < 0 {
		return errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("max_retries must not be negative"))
	}
	if req.MaxRetries == 0 {
		req.MaxRetries = vo.MaxRetryCount
	}
	return nil
}

// BulkCleanupReq 批量清理
type BulkCleanupReq struct {
	OlderThanDays          int      `json:"older_than_days"`
	Statuses               []string `json:"statuses"`
	CleanupFiles           *bool    `json:"cleanup_files"`
	ArchiveInsteadOfDelete bool     `json:"archive_instead_of_delete"`
	NoFiles                bool     `json:"no_files"`

	criteria vo.CleanupCriteria
}

// Validate 未填写的条件沿用默认值：30 天前的失败记录并删除文件
func (req *BulkCleanupReq) Validate() error {
	if req.OlderThanDays < 0 {
		return errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("older_than_days must not be negative"))
	}
	c := vo.DefaultCleanupCriteria()
	if req.OlderThanDays > 0 {
		c.OlderThan = time.Duration(req.OlderThanDays) * 24 * time.Hour
	}
	if len(req.Statuses) > 0 {
		c.Statuses = c.Statuses[:0]
		for _, s := range req.Statuses {
			status, ok := vo.ParseVideoStatus(strings.TrimSpace(s))
			if !ok {
				return errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("unknown status %q", s))
			}
			c.Statuses = append(c.Statuses, status)
		}
	}
	if req.CleanupFiles != nil {
		c.CleanupFiles = *req.CleanupFiles
	}
	c.ArchiveInsteadOfDelete = req.ArchiveInsteadOfDelete
	c.NoFiles = req.NoFiles
	req.criteria = c
	return nil
}

// Criteria 必须在 Validate 之后调用
func (req *BulkCleanupReq) Criteria() vo.CleanupCriteria {
	return req.criteria
}

// BulkUpdateMetadataReq 批量修改展示元数据
type BulkUpdateMetadataReq struct {
	VideoIDs []string               `json:"video_ids" binding:"required"`
	Fields   map[string]interface{} `json:"fields" binding:"required"`
}

func (req *BulkUpdateMetadataReq) Validate() error {
	ids, err := normalizeIDs(req.VideoIDs)
	if err != nil {
		return err
	}
	req.VideoIDs = ids
	req.Fields = vo.FilterMetadataFields(req.Fields)
	if len(req.Fields) == 0 {
		return errno.ErrMetadataRequired
	}
	return nil
}

// normalizeIDs 去空白、去重并保持顺序
func normalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errno.ErrIDsRequired
	}
	return out, nil
}
