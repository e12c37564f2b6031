package security

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(clock Clock) *RateLimiter {
	return NewRateLimiter(NewMemoryStore[rateWindow](), DefaultPolicy(), clock)
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := newTestLimiter(newFakeClock())
	key := RateKey("10.0.0.1", "/auth/login")

	for i := 0; i < 5; i++ {
		result := limiter.Check(key, 5, time.Minute)
		require.True(t, result.Allowed, "request %d within the limit", i+1)
		require.Equal(t, 4-i, result.Remaining)
	}

	result := limiter.Check(key, 5, time.Minute)
	require.False(t, result.Allowed)
	require.Equal(t, 0, result.Remaining)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	key := RateKey("10.0.0.1", "/auth/login")

	for i := 0; i < 6; i++ {
		limiter.Check(key, 5, time.Minute)
	}
	require.False(t, limiter.Check(key, 5, time.Minute).Allowed)

	clock.Advance(time.Minute + time.Second)

	result := limiter.Check(key, 5, time.Minute)
	require.True(t, result.Allowed)
	require.Equal(t, 4, result.Remaining)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := newTestLimiter(newFakeClock())

	for i := 0; i < 6; i++ {
		limiter.Check(RateKey("10.0.0.1", "/auth/login"), 5, time.Minute)
	}

	require.False(t, limiter.Check(RateKey("10.0.0.1", "/auth/login"), 5, time.Minute).Allowed)
	require.True(t, limiter.Check(RateKey("10.0.0.2", "/auth/login"), 5, time.Minute).Allowed)
	require.True(t, limiter.Check(RateKey("10.0.0.1", "/photos"), 5, time.Minute).Allowed)
}

func TestRateLimiter_ConcurrentChecksDoNotLoseCounts(t *testing.T) {
	limiter := newTestLimiter(newFakeClock())
	key := RateKey("10.0.0.1", "/auth/login")

	const goroutines = 100
	allowed := make([]bool, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			allowed[i] = limiter.Check(key, 10, time.Minute).Allowed
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range allowed {
		if ok {
			count++
		}
	}
	require.Equal(t, 10, count, "exactly limit requests pass under contention")
}

func TestRateLimiter_SweepDropsStaleWindows(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)

	for i := 0; i < 3; i++ {
		limiter.Check(RateKey(fmt.Sprintf("10.0.0.%d", i), "/photos"), 5, time.Minute)
	}

	require.Equal(t, 0, limiter.SweepStale())

	clock.Advance(12 * time.Minute)
	require.Equal(t, 3, limiter.SweepStale())
}
