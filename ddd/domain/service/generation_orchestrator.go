package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/logger"
)

// GenerationOrchestrator 生成编排：脚本落盘 → 语音合成 → 选择背景 → 合成视频 → 校验产物
type GenerationOrchestrator interface {
	// Generate 生成成功时返回非空的视频文件，其余情况一律返回带类型的错误
	Generate(ctx context.Context, req GenerationRequest) (vo.GenerationArtifacts, error)
}

// GenerationRequest 一次生成的输入
type GenerationRequest struct {
	VideoID  string
	Script   string
	Caption  string
	Language string
}

// GenerationRequestFor 从视频记录构造生成请求，字幕使用经文
func GenerationRequestFor(v *entity.VideoRecord) GenerationRequest {
	caption := v.Sermon().Scripture
	if caption == "" {
		caption = v.PublishTitle()
	}
	return GenerationRequest{
		VideoID: v.ID(),
		Script:  v.Script(),
		Caption: caption,
	}
}

// GenerationOptions 生成参数
type GenerationOptions struct {
	WorkDir     string
	OutputDir   string
	Language    string
	Timeout     time.Duration
	MaxDuration time.Duration
}

type generationOrchestrator struct {
	synthesizer port.Synthesizer
	compositor  port.Compositor
	selector    port.BackgroundSelector
	opts        GenerationOptions

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGenerationOrchestrator 创建生成编排器
func NewGenerationOrchestrator(synthesizer port.Synthesizer, compositor port.Compositor, selector port.BackgroundSelector, opts GenerationOptions) GenerationOrchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Language == "" {
		opts.Language = "ko"
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &generationOrchestrator{
		synthesizer: synthesizer,
		compositor:  compositor,
		selector:    selector,
		opts:        opts,
		inflight:    make(map[string]struct{}),
	}
}

// Generate 同一视频同时只允许一个生成过程
func (o *generationOrchestrator) Generate(ctx context.Context, req GenerationRequest) (vo.GenerationArtifacts, error) {
	script := vo.Truncate(vo.NormalizeText(req.Script), vo.MaxScriptLength)
	if strings.TrimSpace(req.VideoID) == "" {
		return vo.GenerationArtifacts{}, entity.NewValidationError("generate", errors.New("video id is required"))
	}
	if strings.TrimSpace(script) == "" {
		return vo.GenerationArtifacts{}, entity.NewValidationError("generate", errors.New("script is empty"))
	}
	if !o.acquire(req.VideoID) {
		return vo.GenerationArtifacts{}, entity.Errorf(entity.KindConcurrency, "generate", "generation already running for video %s", req.VideoID)
	}
	defer o.release(req.VideoID)

	lang := req.Language
	if lang == "" {
		lang = o.opts.Language
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	started := time.Now()
	log := logger.FromContext(ctx).WithField("video_id", req.VideoID)

	// 每次运行使用独立的临时目录，任何退出路径都会删除
	workDir := filepath.Join(o.opts.WorkDir, fmt.Sprintf("%s-%s", req.VideoID, uuid.NewString()[:8]))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return vo.GenerationArtifacts{}, entity.NewFileSystemError("create work dir", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.WithError(err).Warn("failed to clean generation work dir")
		}
	}()

	textFile := filepath.Join(workDir, "script.txt")
	if err := os.WriteFile(textFile, []byte(script), 0o644); err != nil {
		return vo.GenerationArtifacts{}, entity.NewFileSystemError("write script", err)
	}
	captionFile := filepath.Join(workDir, "caption.txt")
	if err := os.WriteFile(captionFile, []byte(vo.SanitizeOverlay(req.Caption)), 0o644); err != nil {
		return vo.GenerationArtifacts{}, entity.NewFileSystemError("write caption", err)
	}

	audioPath, err := o.synthesizer.Synthesize(ctx, port.SynthesisRequest{
		TextFile:   textFile,
		OutputPath: filepath.Join(workDir, "audio.mp3"),
		Language:   lang,
	})
	if err != nil {
		return vo.GenerationArtifacts{}, o.stageError(ctx, "synthesize", err)
	}
	if err := nonEmptyFile(audioPath); err != nil {
		return vo.GenerationArtifacts{}, entity.NewPermanentError("synthesize", err)
	}

	background, err := o.selector.Select(ctx, req.VideoID)
	if err != nil {
		return vo.GenerationArtifacts{}, o.stageError(ctx, "select background", err)
	}

	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return vo.GenerationArtifacts{}, entity.NewFileSystemError("create output dir", err)
	}
	outputPath := filepath.Join(o.opts.OutputDir, req.VideoID+".mp4")
	thumbnailPath := filepath.Join(o.opts.OutputDir, req.VideoID+"_thumb.jpg")

	result, err := o.compositor.Compose(ctx, port.CompositionRequest{
		BackgroundPath: background,
		AudioPath:      audioPath,
		CaptionFile:    captionFile,
		OutputPath:     outputPath,
		ThumbnailPath:  thumbnailPath,
		MaxDuration:    o.opts.MaxDuration,
	})
	if err != nil {
		removeQuietly(outputPath, thumbnailPath)
		return vo.GenerationArtifacts{}, o.stageError(ctx, "compose", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		removeQuietly(thumbnailPath)
		return vo.GenerationArtifacts{}, entity.NewFileSystemError("validate output", err)
	}
	if info.Size() == 0 {
		removeQuietly(outputPath, thumbnailPath)
		return vo.GenerationArtifacts{}, entity.NewPermanentError("validate output", errors.New("generated video file is empty"))
	}
	if err := nonEmptyFile(thumbnailPath); err != nil {
		thumbnailPath = ""
	}

	log.WithFields(map[string]interface{}{
		"output":  outputPath,
		"bytes":   info.Size(),
		"elapsed": time.Since(started).String(),
	}).Info("video generated")

	return vo.GenerationArtifacts{
		VideoPath:     outputPath,
		ThumbnailPath: thumbnailPath,
		OutputBytes:   info.Size(),
		Duration:      result.Duration,
	}, nil
}

// stageError 超时统一归为 timeout，已带类型的错误原样返回
func (o *generationOrchestrator) stageError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return entity.NewTransientError(op, fmt.Errorf("generation timeout after %s: %w", o.opts.Timeout, err)).
			WithCategory(vo.ErrorCategoryTimeout)
	}
	if entity.KindOf(err) != "" {
		return err
	}
	return entity.NewTransientError(op, err)
}

func (o *generationOrchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[id]; ok {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *generationOrchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}

func nonEmptyFile(path string) error {
	if path == "" {
		return errors.New("no file produced")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return nil
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
