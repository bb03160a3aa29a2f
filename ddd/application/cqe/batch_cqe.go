package cqe

import (
	"strings"

	"sermon-publisher/pkg/errno"
)

// CreateBatchReq 批量提交请求
type CreateBatchReq struct {
	Sources []string `json:"sources" binding:"required"` // 来源页面 URL 列表
}

// Validate 去掉空白项，至少保留一个来源
func (req *CreateBatchReq) Validate() error {
	sources := make([]string, 0, len(req.Sources))
	for _, s := range req.Sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return errno.ErrSourcesRequired
	}
	req.Sources = sources
	return nil
}

// QueryBatchReq 查询批次进度
type QueryBatchReq struct {
	BatchID string `uri:"batch_id" binding:"required"`
}

func (req *QueryBatchReq) Validate() error {
	if strings.TrimSpace(req.BatchID) == "" {
		return errno.NewBizError(errno.ErrInvalidParam, nil)
	}
	return nil
}
