package gateway

import (
	"context"

	"sermon-publisher/ddd/domain/vo"
)

// VideoPublisher 视频平台发布网关，实现内部负责令牌刷新和重试
type VideoPublisher interface {
	Publish(ctx context.Context, videoPath string, meta vo.PublishMetadata) (vo.PublishResult, error)
}
