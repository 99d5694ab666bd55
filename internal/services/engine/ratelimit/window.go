// Package ratelimit provides a fixed-window request limiter. It is the
// default collaborator wired by the engine host; deployments with a shared
// rate-limiting service replace it at the engine's RateLimiter boundary.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window counts requests per identity within fixed intervals. Each Allow call
// consumes budget; the limiter owns that bookkeeping, not the engine.
type Window struct {
	mu       sync.Mutex
	limit    int
	interval time.Duration
	clock    func() time.Time

	windowStart time.Time
	counts      map[string]int
}

// NewWindow creates a limiter allowing limit requests per identity per
// interval. A non-positive limit disables limiting.
func NewWindow(limit int, interval time.Duration) *Window {
	return &Window{
		limit:    limit,
		interval: interval,
		clock:    time.Now,
		counts:   make(map[string]int),
	}
}

// WithClock overrides the limiter's time source. Test helper.
func (w *Window) WithClock(clock func() time.Time) *Window {
	w.clock = clock
	return w
}

// Allow reports whether identity is under budget and consumes one unit when it
// is. A denied request consumes nothing.
func (w *Window) Allow(ctx context.Context, identity string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if w == nil || w.limit <= 0 {
		return true, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock()
	if w.windowStart.IsZero() || now.Sub(w.windowStart) >= w.interval {
		w.windowStart = now
		w.counts = make(map[string]int)
	}

	if w.counts[identity] >= w.limit {
		return false, nil
	}
	w.counts[identity]++
	return true, nil
}
