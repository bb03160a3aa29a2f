package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
)

// MockSynthesizer 不调用外部命令，输出由脚本内容决定的占位音频
type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(ctx context.Context, req port.SynthesisRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := os.ReadFile(req.TextFile)
	if err != nil {
		return "", entity.NewFileSystemError("synthesize", err)
	}
	sum := sha256.Sum256(append([]byte(req.Language+":"), text...))
	if err := writeFile(req.OutputPath, []byte("MOCK-AUDIO "+hex.EncodeToString(sum[:]))); err != nil {
		return "", entity.NewFileSystemError("synthesize", err)
	}
	return req.OutputPath, nil
}

// MockCompositor 写出确定性的占位视频和缩略图
type MockCompositor struct {
	Duration time.Duration
}

func (m MockCompositor) Compose(ctx context.Context, req port.CompositionRequest) (port.CompositionResult, error) {
	if err := ctx.Err(); err != nil {
		return port.CompositionResult{}, err
	}
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return port.CompositionResult{}, entity.NewFileSystemError("compose video", err)
	}
	caption, _ := os.ReadFile(req.CaptionFile)

	h := sha256.New()
	h.Write([]byte(filepath.Base(req.BackgroundPath)))
	h.Write(audio)
	h.Write(caption)
	digest := hex.EncodeToString(h.Sum(nil))

	if err := writeFile(req.OutputPath, []byte("MOCK-MP4 "+digest)); err != nil {
		return port.CompositionResult{}, entity.NewFileSystemError("compose video", err)
	}
	if req.ThumbnailPath != "" {
		if err := writeFile(req.ThumbnailPath, []byte("MOCK-JPG "+digest[:16])); err != nil {
			return port.CompositionResult{}, entity.NewFileSystemError("compose video", err)
		}
	}

	d := m.Duration
	if d <= 0 {
		d = 30 * time.Second
	}
	if req.MaxDuration > 0 && d > req.MaxDuration {
		d = req.MaxDuration
	}
	return port.CompositionResult{Duration: d}, nil
}

// StaticSelector 始终返回同一个背景路径
type StaticSelector string

func (s StaticSelector) Select(context.Context, string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no background configured")
	}
	return string(s), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
