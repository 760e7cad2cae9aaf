package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"MacroPull/pkg/clock"
)

// Policy describes an exponential backoff schedule with random jitter
// and a hard delay cap.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the delay added at random, e.g. 0.25
}

// DefaultPolicy matches the provider adapters' retry budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.25,
	}
}

// Delay computes the backoff before the given retry attempt (attempt 0
// is the first retry).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// permanentError stops retrying immediately.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// AfterError carries a server-supplied retry delay (a 429 with
// Retry-After). The delay overrides the backoff schedule for the next
// attempt.
type AfterError struct {
	After time.Duration
	Err   error
}

func (e *AfterError) Error() string { return e.Err.Error() }
func (e *AfterError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, returns a permanent error, or the
// attempt budget is exhausted. The backoff sleeps go through the
// injected clock so tests stay deterministic.
func Do(ctx context.Context, clk clock.Clock, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := p.Delay(attempt)
		var after *AfterError
		if errors.As(err, &after) && after.After > 0 {
			delay = after.After
		}
		if err := clk.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}
