package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/pkg/logger"
)

const stderrTailLines = 50

// lineHandler 返回 true 表示该行已被消费，不再进入 stderr 尾部缓存
type lineHandler func(line string) bool

// tailBuffer 保留最近 N 行输出
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit, lines: make([]string, 0, limit)}
}

func (b *tailBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.limit {
		b.lines = b.lines[1:]
	}
	b.lines = append(b.lines, line)
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// runTool 运行外部命令。ctx 取消时整个进程组被杀掉，返回 ctx.Err()。
func runTool(ctx context.Context, op string, cmd *exec.Cmd, onLine lineHandler) error {
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return entity.NewFileSystemError(op, fmt.Errorf("stderr pipe: %w", err))
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return entity.NewPermanentError(op, fmt.Errorf("%s not installed: %w", cmd.Path, err))
		}
		return entity.NewTransientError(op, fmt.Errorf("start %s: %w", cmd.Path, err))
	}

	tail := newTailBuffer(stderrTailLines)
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanLines(stderr, tail, onLine)
	}()

	<-scanDone
	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if waitErr != nil {
		stderrTail := tail.String()
		logger.Errorf("%s failed command=%s tail_stderr=%s", op, strings.Join(cmd.Args, " "), stderrTail)
		return entity.NewTransientError(op, fmt.Errorf("%s exited: %w: %s", cmd.Path, waitErr, lastLine(stderrTail)))
	}
	return nil
}

func scanLines(r io.Reader, tail *tailBuffer, onLine lineHandler) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if onLine != nil && onLine(line) {
			continue
		}
		tail.add(line)
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
