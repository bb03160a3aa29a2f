package vo

import "time"

// GenerationArtifacts 生成成功后的产物
type GenerationArtifacts struct {
	VideoPath     string
	ThumbnailPath string
	OutputBytes   int64
	Duration      time.Duration
}

// PublishResult 发布成功后平台返回的标识
type PublishResult struct {
	ExternalID  string `json:"external_id"`
	ExternalURL string `json:"external_url"`
}
