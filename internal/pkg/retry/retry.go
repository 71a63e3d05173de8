// Package retry 提供显式的重试策略，在外部依赖调用边界统一使用。
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderflow/internal/logger"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Policy 描述最大尝试次数与指数退避参数。
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// None 只尝试一次。
func None() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff 返回第 n 次重试（从 0 开始）前的等待时间：base*2^n，封顶 max。
func (p Policy) Backoff(n int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}
	if n < 0 {
		return base
	}
	if n > 30 {
		return max
	}
	d := base * time.Duration(1<<n)
	if d <= 0 || d > max {
		return max
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不应重试的错误。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断错误是否被标记为不可重试。
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do 按策略执行 fn。ctx 结束、错误被标记为 Permanent 或次数用尽时返回最后一次错误，
// Permanent 包装会被剥离。
func Do(ctx context.Context, name string, p Policy, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := p.attempts()
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if i == attempts-1 {
			break
		}
		wait := p.Backoff(i)
		logger.Debugf("[retry] %s attempt %d/%d failed: %v, next in %s", name, i+1, attempts, err, wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	if attempts > 1 {
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
	}
	return lastErr
}
