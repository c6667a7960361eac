package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_SpacesRequestsPerDomain(t *testing.T) {
	limiter := newRateLimiter()
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "slow.onion", 80*time.Millisecond))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "slow.onion", 80*time.Millisecond))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestRateLimiter_DomainsAreIndependent(t *testing.T) {
	limiter := newRateLimiter()
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "one.onion", 500*time.Millisecond))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "two.onion", 500*time.Millisecond))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestRateLimiter_ZeroDelayNeverBlocks(t *testing.T) {
	limiter := newRateLimiter()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, limiter.Wait(ctx, "fast.onion", 0))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_DelayAppliesAtWaitTime(t *testing.T) {
	limiter := newRateLimiter()
	ctx := context.Background()

	// First pass establishes lastRequest under a long delay
	require.NoError(t, limiter.Wait(ctx, "tuned.onion", time.Hour))

	// A policy change to a short delay must take effect immediately
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "tuned.onion", 50*time.Millisecond))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestRateLimiter_ContextCancelUnblocks(t *testing.T) {
	limiter := newRateLimiter()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Wait(ctx, "stuck.onion", 10*time.Second))

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := limiter.Wait(ctx, "stuck.onion", 10*time.Second)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, elapsed, 2*time.Second)
}
