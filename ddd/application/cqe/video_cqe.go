package cqe

import (
	"strings"

	"sermon-publisher/pkg/errno"
)

// QueryVideoReq 查询视频记录
type QueryVideoReq struct {
	VideoID string `uri:"video_id" binding:"required"`
}

func (req *QueryVideoReq) Validate() error {
	if strings.TrimSpace(req.VideoID) == "" {
		return errno.ErrIDsRequired
	}
	return nil
}
