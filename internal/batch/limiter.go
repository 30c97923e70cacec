package batch

import (
	"context"
	"time"
)

// RateLimiter spaces out consecutive fetches against the upstream providers.
// It is not safe for concurrent use, the batch loop is the only caller.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
}

// NewRateLimiter creates a limiter enforcing the given minimum interval
// between consecutive Wait returns
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous Wait returned. The first call returns immediately. A cancelled
// context cuts the pause short and returns the context's error.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.last.IsZero() {
		rl.last = time.Now()
		return nil
	}

	remaining := rl.interval - time.Since(rl.last)
	if remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	rl.last = time.Now()
	return nil
}
