package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// FFmpegCompositor 用本地 ffmpeg 生成竖屏短视频
type FFmpegCompositor struct {
	cfg config.FFmpegConfig
}

func NewFFmpegCompositor(cfg config.FFmpegConfig) *FFmpegCompositor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffmpeg"
	}
	if cfg.ProbePath == "" {
		cfg.ProbePath = "ffprobe"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1080, 1920
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = 50
	}
	return &FFmpegCompositor{cfg: cfg}
}

var _ port.Compositor = (*FFmpegCompositor)(nil)

func (c *FFmpegCompositor) Compose(ctx context.Context, req port.CompositionRequest) (port.CompositionResult, error) {
	const op = "compose video"
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return port.CompositionResult{}, entity.NewFileSystemError(op, err)
	}

	duration := c.probeDuration(ctx, req.AudioPath)
	if duration <= 0 {
		return port.CompositionResult{}, entity.Errorf(entity.KindPermanentExternal, op, "cannot determine audio duration of %s", filepath.Base(req.AudioPath))
	}
	if req.MaxDuration > 0 && duration > req.MaxDuration {
		logger.Warnf("audio truncated output=%s duration=%s max=%s", req.OutputPath, duration, req.MaxDuration)
		duration = req.MaxDuration
	}

	cmd := c.buildComposeCommand(ctx, req, duration)
	logger.Infof("ffmpeg command output=%s command=%s", req.OutputPath, strings.Join(cmd.Args, " "))
	progress := newProgressLogger(req.OutputPath, duration)
	if err := runTool(ctx, op, cmd, progress.handle); err != nil {
		return port.CompositionResult{}, err
	}

	if req.ThumbnailPath != "" {
		thumb := c.buildThumbnailCommand(ctx, req.OutputPath, req.ThumbnailPath, duration)
		if err := runTool(ctx, "extract thumbnail", thumb, nil); err != nil {
			// 缩略图不是必需产物
			logger.Warnf("thumbnail extraction failed output=%s error=%v", req.ThumbnailPath, err)
		}
	}
	return port.CompositionResult{Duration: duration}, nil
}

// probeDuration 调用 ffprobe 获取时长，失败返回 0
func (c *FFmpegCompositor) probeDuration(ctx context.Context, path string) time.Duration {
	cmd := exec.CommandContext(ctx, c.cfg.ProbePath, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	return parseSeconds(string(out))
}

func parseSeconds(s string) time.Duration {
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || val <= 0 {
		return 0
	}
	return time.Duration(val * float64(time.Second))
}

// videoFilter 缩放裁剪到目标尺寸，再叠加底部居中的字幕
func (c *FFmpegCompositor) videoFilter(captionFile string) string {
	w, h := c.cfg.Width, c.cfg.Height
	parts := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
		fmt.Sprintf("crop=%d:%d", w, h),
		fmt.Sprintf("fps=%d", c.cfg.FPS),
		"setsar=1",
	}
	if captionFile != "" {
		draw := []string{
			"textfile=" + escapeFilterValue(captionFile),
			"fontcolor=white",
			fmt.Sprintf("fontsize=%d", c.cfg.FontSize),
			"box=1",
			"boxcolor=black@0.5",
			"boxborderw=24",
			"line_spacing=12",
			"x=(w-text_w)/2",
			"y=h*0.72",
		}
		if c.cfg.FontFile != "" {
			draw = append(draw, "fontfile="+escapeFilterValue(c.cfg.FontFile))
		}
		parts = append(parts, "drawtext="+strings.Join(draw, ":"))
	}
	return strings.Join(parts, ",")
}

func (c *FFmpegCompositor) buildComposeCommand(ctx context.Context, req port.CompositionRequest, duration time.Duration) *exec.Cmd {
	args := []string{
		"-y",
		"-stream_loop", "-1",
		"-i", req.BackgroundPath,
		"-i", req.AudioPath,
		"-t", formatSeconds(duration),
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", c.videoFilter(req.CaptionFile),
		"-c:v", c.codec(),
		"-preset", c.preset(),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-shortest",
		"-progress", "pipe:2",
		"-nostats",
	}
	if c.cfg.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(c.cfg.Threads))
	}
	args = append(args, req.OutputPath)
	return exec.CommandContext(ctx, c.cfg.BinaryPath, args...)
}

func (c *FFmpegCompositor) buildThumbnailCommand(ctx context.Context, videoPath, thumbPath string, duration time.Duration) *exec.Cmd {
	at := time.Second
	if duration < 2*time.Second {
		at = 0
	}
	return exec.CommandContext(ctx, c.cfg.BinaryPath,
		"-y",
		"-ss", formatSeconds(at),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		thumbPath,
	)
}

func (c *FFmpegCompositor) codec() string {
	if strings.TrimSpace(c.cfg.VideoCodec) != "" {
		return c.cfg.VideoCodec
	}
	return "libx264"
}

func (c *FFmpegCompositor) preset() string {
	if strings.TrimSpace(c.cfg.VideoPreset) != "" {
		return c.cfg.VideoPreset
	}
	return "medium"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// escapeFilterValue 转义 filtergraph 选项值中的特殊字符
func escapeFilterValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`, `[`, `\[`, `]`, `\]`, `;`, `\;`)
	return r.Replace(s)
}

// progressLogger 解析 -progress 输出，每 25% 记录一次
type progressLogger struct {
	output string
	total  time.Duration
	next   int
}

func newProgressLogger(output string, total time.Duration) *progressLogger {
	return &progressLogger{output: output, total: total, next: 25}
}

func (p *progressLogger) handle(line string) bool {
	if !strings.HasPrefix(line, "out_time_ms=") {
		return strings.Contains(line, "=") && !strings.Contains(line, " ")
	}
	us, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
	if err != nil || p.total <= 0 {
		return true
	}
	pct := int(time.Duration(us*float64(time.Microsecond)) * 100 / p.total)
	if pct >= p.next && p.next <= 100 {
		logger.Debugf("ffmpeg progress output=%s percent=%d", p.output, pct)
		for p.next <= pct {
			p.next += 25
		}
	}
	return true
}
