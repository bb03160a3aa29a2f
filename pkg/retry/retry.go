package retry

import (
	"context"
	"fmt"
	"time"
)

// Class 错误的重试分类
type Class int

const (
	// Stop 不再重试，直接返回原错误
	Stop Class = iota
	// Backoff 等待退避时间后重试
	Backoff
	// Immediate 不等待立即重试（例如刷新凭证之后）
	Immediate
)

func (c Class) String() string {
	switch c {
	case Stop:
		return "stop"
	case Backoff:
		return "backoff"
	case Immediate:
		return "immediate"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// BackoffFunc 返回第 n 次重试（从 1 开始）前的等待时间
type BackoffFunc func(retry int) time.Duration

// SleepFunc 可注入的等待函数，ctx 取消时返回 ctx.Err()
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 可复用的重试策略
type Policy struct {
	MaxRetries int
	Classify   func(err error) Class
	Backoff    BackoffFunc
	Sleep      SleepFunc
	// OnRetry 在每次重试前调用，返回错误则终止重试
	OnRetry func(ctx context.Context, retry int, cause error, class Class) error
}

// ExhaustedError 重试次数耗尽
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do 执行 fn，attempt 从 0 开始计数
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Backoff }
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		class := classify(err)
		if class == Stop {
			return err
		}
		if attempt >= p.MaxRetries {
			return &ExhaustedError{Attempts: attempt + 1, Last: err}
		}

		retry := attempt + 1
		if p.OnRetry != nil {
			if hookErr := p.OnRetry(ctx, retry, err, class); hookErr != nil {
				return hookErr
			}
		}
		if class == Backoff && p.Backoff != nil {
			if d := p.Backoff(retry); d > 0 {
				if err := sleep(ctx, d); err != nil {
					return err
				}
			}
		}
	}
}

// ContextSleep 默认等待实现
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Linear 第 n 次重试等待 n*d
func Linear(d time.Duration) BackoffFunc {
	return func(retry int) time.Duration { return time.Duration(retry) * d }
}

// Exponential 第 n 次重试等待 base*2^(n-1)，不超过 max（max<=0 不封顶）
func Exponential(base, max time.Duration) BackoffFunc {
	return func(retry int) time.Duration {
		if retry < 1 {
			retry = 1
		}
		d := base
		for i := 1; i < retry; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}
