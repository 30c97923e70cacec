package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFirstCallImmediate(t *testing.T) {
	rl := NewRateLimiter(time.Second)

	start := time.Now()
	err := rl.Wait(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiterPacing(t *testing.T) {
	interval := 30 * time.Millisecond
	rl := NewRateLimiter(interval)
	ctx := context.Background()

	n := 3
	start := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, rl.Wait(ctx))
	}

	// N waits must span at least (N-1) intervals
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(n-1)*interval)
}

func TestRateLimiterZeroInterval(t *testing.T) {
	rl := NewRateLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(ctx))
	}

	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiterCancelledContext(t *testing.T) {
	rl := NewRateLimiter(5 * time.Second)

	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
