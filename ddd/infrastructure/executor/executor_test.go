package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/pkg/config"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExpandArgs(t *testing.T) {
	got := expandArgs([]string{"--lang", "{lang}", "--file={text_file}", "{output}"}, port.SynthesisRequest{
		TextFile: "/w/script.txt", OutputPath: "/w/audio.mp3", Language: "ko",
	})
	want := []string{"--lang", "ko", "--file=/w/script.txt", "/w/audio.mp3"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("expandArgs = %v, want %v", got, want)
	}
}

func TestCommandSynthesizerRunsTemplate(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	text := filepath.Join(dir, "script.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewCommandSynthesizer(config.SynthesizerConfig{
		BinaryPath: "sh",
		Args:       []string{"-c", "cp \"$0\" \"$1\"", "{text_file}", "{output}"},
	})
	out, err := s.Synthesize(context.Background(), port.SynthesisRequest{
		TextFile: text, OutputPath: filepath.Join(dir, "nested", "audio.mp3"), Language: "en",
	})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected output %q err=%v", data, err)
	}
}

func TestRunToolReportsStderrTail(t *testing.T) {
	requireShell(t)
	cmd := exec.CommandContext(context.Background(), "sh", "-c", "echo 'first' >&2; echo 'Connection refused' >&2; exit 3")
	err := runTool(context.Background(), "synthesize", cmd, nil)
	if !entity.IsKind(err, entity.KindTransientExternal) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Connection refused") {
		t.Fatalf("stderr tail missing from %q", err.Error())
	}
}

func TestRunToolMissingBinaryIsPermanent(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "definitely-not-a-real-tts-binary")
	err := runTool(context.Background(), "synthesize", cmd, nil)
	if !entity.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestRunToolHonoursDeadline(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := runTool(ctx, "compose video", exec.CommandContext(ctx, "sh", "-c", "sleep 10"), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("process was not killed promptly")
	}
}

func TestVideoFilterTargetsVerticalFrame(t *testing.T) {
	c := NewFFmpegCompositor(config.FFmpegConfig{FontFile: "/fonts/Noto Sans:KR.ttf"})
	f := c.videoFilter("/tmp/work/caption.txt")
	for _, want := range []string{
		"scale=1080:1920:force_original_aspect_ratio=increase",
		"crop=1080:1920",
		"fps=30",
		"drawtext=textfile=/tmp/work/caption.txt",
		"fontsize=50",
		`fontfile=/fonts/Noto Sans\:KR.ttf`,
	} {
		if !strings.Contains(f, want) {
			t.Errorf("filter %q missing %q", f, want)
		}
	}
	if strings.Contains(c.videoFilter(""), "drawtext") {
		t.Errorf("drawtext added without caption")
	}
}

func TestComposeCommandLoopsBackgroundToAudioLength(t *testing.T) {
	c := NewFFmpegCompositor(config.FFmpegConfig{BinaryPath: "ffmpeg", Threads: 2})
	cmd := c.buildComposeCommand(context.Background(), port.CompositionRequest{
		BackgroundPath: "bg.mp4", AudioPath: "audio.mp3", OutputPath: "out.mp4",
	}, 42500*time.Millisecond)
	args := strings.Join(cmd.Args, " ")
	for _, want := range []string{"-stream_loop -1 -i bg.mp4", "-i audio.mp3", "-t 42.500", "-c:v libx264", "-threads 2", "out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if !strings.HasSuffix(args, "out.mp4") {
		t.Errorf("output path must be last: %q", args)
	}
}

func TestParseSeconds(t *testing.T) {
	if got := parseSeconds("12.5\n"); got != 12500*time.Millisecond {
		t.Fatalf("parseSeconds = %s", got)
	}
	if got := parseSeconds("N/A"); got != 0 {
		t.Fatalf("parseSeconds(N/A) = %s", got)
	}
}

func TestDirectorySelectorIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.mp4", "a.mov", "b.mp4", "notes.txt", ".hidden.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()

	first := NewDirectorySelector(dir, PolicyFirstMatch)
	got, err := first.Select(ctx, "video-1")
	if err != nil || filepath.Base(got) != "a.mov" {
		t.Fatalf("first_match = %q err=%v", got, err)
	}

	hashed := NewDirectorySelector(dir, PolicyHash)
	a, _ := hashed.Select(ctx, "video-42")
	b, _ := hashed.Select(ctx, "video-42")
	if a == "" || a != b {
		t.Fatalf("hash policy not stable: %q vs %q", a, b)
	}
	if strings.HasSuffix(a, ".txt") || strings.Contains(a, ".hidden") {
		t.Fatalf("unexpected candidate %q", a)
	}
}

func TestDirectorySelectorEmpty(t *testing.T) {
	_, err := NewDirectorySelector(t.TempDir(), PolicyHash).Select(context.Background(), "k")
	if !entity.IsKind(err, entity.KindFileSystem) {
		t.Fatalf("expected file system error, got %v", err)
	}
}

func TestMockToolsAreDeterministic(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.txt")
	_ = os.WriteFile(script, []byte("grace"), 0o644)
	ctx := context.Background()

	tools := NewTools(config.GenerationConfig{ToolMode: "mock", BackgroundDir: dir})
	render := func(name string) []byte {
		audio, err := tools.Synthesizer.Synthesize(ctx, port.SynthesisRequest{TextFile: script, OutputPath: filepath.Join(dir, name+".mp3"), Language: "ko"})
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		bg, _ := tools.Selector.Select(ctx, name)
		out := filepath.Join(dir, name+".mp4")
		res, err := tools.Compositor.Compose(ctx, port.CompositionRequest{
			BackgroundPath: bg, AudioPath: audio, OutputPath: out,
			ThumbnailPath: filepath.Join(dir, name+".jpg"), MaxDuration: 10 * time.Second,
		})
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if res.Duration != 10*time.Second {
			t.Fatalf("duration not capped: %s", res.Duration)
		}
		data, _ := os.ReadFile(out)
		return data
	}
	if a, b := render("one"), render("two"); string(a) != string(b) || len(a) == 0 {
		t.Fatalf("mock output differs: %q vs %q", a, b)
	}
}
