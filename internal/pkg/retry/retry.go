package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
)

// Policy is an exponential backoff schedule: attempt n (0-based) waits
// Base*2^n before the next try, capped at Max.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Jitter   bool
}

var (
	TextCompletion = Policy{Attempts: 3, Base: 2 * time.Second, Max: 8 * time.Second}
	ImageSynthesis = Policy{Attempts: 3, Base: 3 * time.Second, Max: 12 * time.Second}
)

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Delay returns the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Delayer lets an error request a specific wait, e.g. from Retry-After.
type Delayer interface {
	RetryAfter() time.Duration
}

// ExhaustedError wraps the last error once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type Hooks struct {
	// Retryable classifies errors; nil means httpx.IsRetryableError.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep replaces the wait; tests use it to skip real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, fails with a non-retryable error, or runs out
// of attempts. Waiting never blocks past ctx cancellation.
func Do(ctx context.Context, p Policy, h Hooks, fn func(ctx context.Context) error) error {
	retryable := h.Retryable
	if retryable == nil {
		retryable = httpx.IsRetryableError
	}
	sleep := h.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	attempts := p.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		var d Delayer
		if errors.As(lastErr, &d) {
			if ra := d.RetryAfter(); ra > 0 {
				delay = ra
				if p.Max > 0 && delay > p.Max {
					delay = p.Max
				}
			}
		}
		if p.Jitter {
			delay = httpx.JitterSleep(delay)
		}
		if h.OnRetry != nil {
			h.OnRetry(attempt+1, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
