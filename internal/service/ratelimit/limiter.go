package ratelimit

import (
	"context"
	"sync"
	"time"

	"MacroPull/pkg/clock"
)

// WindowLimiter enforces a fixed request quota per rolling time window.
// When the window's quota is exhausted, Acquire sleeps until the window
// resets rather than letting the caller issue a request that would be
// rejected. Safe for concurrent use; one adapter instance is invoked
// from multiple series fetches within a single date's fan-out.
type WindowLimiter struct {
	mu          sync.Mutex
	clk         clock.Clock
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
}

func NewWindow(limit int, window time.Duration, clk clock.Clock) *WindowLimiter {
	return &WindowLimiter{clk: clk, limit: limit, window: window}
}

// Acquire consumes one request slot, blocking until one is available.
// No lock is held while sleeping.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clk.Now()
		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.limit {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		if err := l.clk.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire consumes a slot if one is available without waiting.
func (l *WindowLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count < l.limit {
		l.count++
		return true
	}
	return false
}

// Remaining reports how many slots are left in the current window.
func (l *WindowLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		return l.limit
	}
	return l.limit - l.count
}

// Reset clears the window state. Used in tests and for operational
// recovery.
func (l *WindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count = 0
	l.windowStart = time.Time{}
}
