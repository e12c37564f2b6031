package security

import (
	"sync"
	"time"
)

// fakeClock is a manually advanced clock shared by the expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testSecrets() Secrets {
	return Secrets{
		Access:  []byte("access-secret-for-tests"),
		Refresh: []byte("refresh-secret-for-tests"),
		CSRF:    []byte("csrf-secret-for-tests"),
		Signing: []byte("signing-secret-for-tests"),
	}
}
