package executor

import (
	"path/filepath"
	"strings"

	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// Tools 生成流程依赖的外部工具
type Tools struct {
	Synthesizer port.Synthesizer
	Compositor  port.Compositor
	Selector    port.BackgroundSelector
}

// NewTools tool_mode=mock 时使用不依赖外部命令的实现
func NewTools(cfg config.GenerationConfig) Tools {
	if strings.EqualFold(cfg.ToolMode, "mock") {
		logger.Warn("Generation tools running in mock mode", map[string]interface{}{"output_dir": cfg.OutputDir})
		return Tools{
			Synthesizer: MockSynthesizer{},
			Compositor:  MockCompositor{},
			Selector:    StaticSelector(filepath.Join(cfg.BackgroundDir, "mock-background.mp4")),
		}
	}
	return Tools{
		Synthesizer: NewCommandSynthesizer(cfg.Synthesizer),
		Compositor:  NewFFmpegCompositor(cfg.FFmpeg),
		Selector:    NewDirectorySelector(cfg.BackgroundDir, cfg.BackgroundPolicy),
	}
}
