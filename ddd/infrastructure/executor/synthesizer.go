package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// CommandSynthesizer 通过外部 TTS 命令合成语音，参数模板支持 {text_file} {output} {lang}
type CommandSynthesizer struct {
	binary string
	args   []string
}

func NewCommandSynthesizer(cfg config.SynthesizerConfig) *CommandSynthesizer {
	return &CommandSynthesizer{binary: cfg.BinaryPath, args: append([]string(nil), cfg.Args...)}
}

var _ port.Synthesizer = (*CommandSynthesizer)(nil)

func (s *CommandSynthesizer) Synthesize(ctx context.Context, req port.SynthesisRequest) (string, error) {
	const op = "synthesize"
	if strings.TrimSpace(s.binary) == "" {
		return "", entity.Errorf(entity.KindPermanentExternal, op, "synthesizer binary not configured")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", entity.NewFileSystemError(op, err)
	}

	cmd := exec.CommandContext(ctx, s.binary, expandArgs(s.args, req)...)
	logger.Debugf("tts command output=%s command=%s", req.OutputPath, strings.Join(cmd.Args, " "))
	if err := runTool(ctx, op, cmd, nil); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func expandArgs(tmpl []string, req port.SynthesisRequest) []string {
	r := strings.NewReplacer(
		"{text_file}", req.TextFile,
		"{output}", req.OutputPath,
		"{lang}", req.Language,
	)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// String 便于日志输出
func (s *CommandSynthesizer) String() string {
	return fmt.Sprintf("%s %s", s.binary, strings.Join(s.args, " "))
}
