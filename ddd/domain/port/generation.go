package port

import (
	"context"
	"time"
)

// SynthesisRequest 文本转语音请求
type SynthesisRequest struct {
	TextFile   string
	OutputPath string
	Language   string
}

// Synthesizer 把脚本文件合成为音频文件，返回音频路径
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (audioPath string, err error)
}

// BackgroundSelector 选择背景视频。同一个 key 必须得到同一个结果。
type BackgroundSelector interface {
	Select(ctx context.Context, key string) (string, error)
}

// CompositionRequest 合成请求
type CompositionRequest struct {
	BackgroundPath string
	AudioPath      string
	// CaptionFile 字幕文本文件，避免在命令行中转义
	CaptionFile   string
	OutputPath    string
	ThumbnailPath string
	MaxDuration   time.Duration
}

// CompositionResult 合成结果
type CompositionResult struct {
	Duration time.Duration
}

// Compositor 裁剪缩放背景、按音频时长循环或截断、叠加字幕、混流输出，并截取缩略图
type Compositor interface {
	Compose(ctx context.Context, req CompositionRequest) (CompositionResult, error)
}
