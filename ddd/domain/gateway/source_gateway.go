package gateway

import (
	"context"

	"sermon-publisher/ddd/domain/vo"
)

// SourceValidator 校验来源引用，返回的错误说明拒绝原因
type SourceValidator interface {
	Validate(ctx context.Context, ref string) error
}

// SourceFetcher 抓取来源页面并抽取讲道内容
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (vo.SermonContent, error)
}
