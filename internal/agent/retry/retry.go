// Package retry supplies the backoff policy applied to remote calls that can
// fail transiently: bounded attempt count, exponential delay between attempts,
// optional per-attempt timeout, and a terminal error carrying the last failure.
package retry

import (
	"context"
	"fmt"
	"time"

	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// Policy parameterises one supervised call site.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the first backoff delay; attempt n waits BaseDelay << n.
	BaseDelay time.Duration
	// AttemptTimeout bounds each individual attempt. Zero means no per-attempt
	// deadline beyond the caller's context.
	AttemptTimeout time.Duration
}

// ExhaustedError is the terminal failure after MaxAttempts, with the last
// attempt's failure attached.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs fn under the policy. Each failed attempt waits the backoff delay
// before the next; exhausting MaxAttempts surfaces an ExhaustedError. The
// caller's context cancels both attempts and backoff waits.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return out, nil
		}
		lastErr = err

		delay := p.BaseDelay << attempt
		logx.Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", delay).
			Err(err).
			Msg("attempt failed")

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Err: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
