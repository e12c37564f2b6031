package security

import "time"

// Clock abstracts wall-clock reads so lockout, rate-limit, and nonce expiry
// logic can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real wall clock in UTC.
func SystemClock() Clock { return systemClock{} }
