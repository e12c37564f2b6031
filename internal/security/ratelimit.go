package security

import "time"

type rateWindow struct {
	Count   int
	ResetAt time.Time
}

// RateResult is the outcome of a single rate-limit check.
type RateResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a keyed fixed-window counter. Counters reset only at window
// boundaries, never early; bursts straddling a boundary are accepted, which is
// the known trade-off of the fixed-window strategy.
type RateLimiter struct {
	store      Store[rateWindow]
	clock      Clock
	staleAfter time.Duration
}

func NewRateLimiter(store Store[rateWindow], policy Policy, clock Clock) *RateLimiter {
	if store == nil {
		store = NewMemoryStore[rateWindow]()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &RateLimiter{store: store, clock: clock, staleAfter: policy.Normalize().RateStaleAfter}
}

// RateKey builds the store key for a client and route.
func RateKey(clientID, route string) string {
	return clientID + ":" + route
}

// Check fetches or creates the window for key, resets it if the window has
// lapsed, and counts this request against limit. The fetch-reset-increment
// sequence runs atomically under the store lock.
func (l *RateLimiter) Check(key string, limit int, window time.Duration) RateResult {
	now := l.clock.Now()
	var result RateResult

	l.store.Update(key, func(win rateWindow, exists bool) (rateWindow, bool) {
		if !exists || now.After(win.ResetAt) {
			win = rateWindow{ResetAt: now.Add(window)}
		}
		win.Count++

		remaining := limit - win.Count
		if remaining < 0 {
			remaining = 0
		}
		result = RateResult{
			Allowed:   win.Count <= limit,
			Remaining: remaining,
			ResetAt:   win.ResetAt,
		}
		return win, true
	})

	return result
}

// SweepStale drops windows whose reset time is far enough in the past to
// bound memory.
func (l *RateLimiter) SweepStale() int {
	now := l.clock.Now()
	return l.store.Sweep(func(win rateWindow) bool {
		return now.Sub(win.ResetAt) > l.staleAfter
	})
}
