package security

import (
	"strings"
	"time"
)

type lockoutRecord struct {
	Attempts    int
	LastFailure time.Time
	LockedUntil time.Time
}

// LoginStatus reports the lockout state for an (ip, identity) pair. When
// Locked, RetryAfter carries the remaining lockout duration; otherwise
// AttemptsRemaining says how many failures are left before lockout.
type LoginStatus struct {
	Locked            bool
	AttemptsRemaining int
	RetryAfter        time.Duration
}

// FailedLoginTracker counts consecutive failed logins per (ip, identity) and
// trips a temporary lockout at the attempt threshold. All transitions for a
// key run atomically under the store lock.
type FailedLoginTracker struct {
	store  Store[lockoutRecord]
	policy Policy
	clock  Clock
}

func NewFailedLoginTracker(store Store[lockoutRecord], policy Policy, clock Clock) *FailedLoginTracker {
	if store == nil {
		store = NewMemoryStore[lockoutRecord]()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &FailedLoginTracker{store: store, policy: policy.Normalize(), clock: clock}
}

func lockoutKey(ip, identity string) string {
	return strings.ToLower(strings.TrimSpace(ip)) + ":" + strings.ToLower(strings.TrimSpace(identity))
}

// Check reports whether a login attempt may proceed. Attempt counts older
// than the attempt window are reset to zero.
func (t *FailedLoginTracker) Check(ip, identity string) LoginStatus {
	now := t.clock.Now()
	var status LoginStatus

	t.store.Update(lockoutKey(ip, identity), func(rec lockoutRecord, exists bool) (lockoutRecord, bool) {
		if !exists {
			status = LoginStatus{AttemptsRemaining: t.policy.MaxLoginAttempts}
			return rec, false
		}
		if now.Before(rec.LockedUntil) {
			status = LoginStatus{Locked: true, RetryAfter: rec.LockedUntil.Sub(now)}
			return rec, true
		}
		rec.LockedUntil = time.Time{}
		if rec.Attempts > 0 && now.Sub(rec.LastFailure) > t.policy.AttemptWindow {
			rec.Attempts = 0
		}
		status = LoginStatus{AttemptsRemaining: t.policy.MaxLoginAttempts - rec.Attempts}
		if rec.Attempts == 0 && rec.LockedUntil.IsZero() {
			return rec, false
		}
		return rec, true
	})

	return status
}

// RecordFailure increments the attempt count and trips the lockout when the
// threshold is reached. An already-active lockout is left unchanged.
func (t *FailedLoginTracker) RecordFailure(ip, identity string) LoginStatus {
	now := t.clock.Now()
	var status LoginStatus

	t.store.Update(lockoutKey(ip, identity), func(rec lockoutRecord, exists bool) (lockoutRecord, bool) {
		if exists && now.Before(rec.LockedUntil) {
			status = LoginStatus{Locked: true, RetryAfter: rec.LockedUntil.Sub(now)}
			return rec, true
		}
		if rec.Attempts > 0 && now.Sub(rec.LastFailure) > t.policy.AttemptWindow {
			rec.Attempts = 0
		}

		rec.Attempts++
		rec.LastFailure = now
		if rec.Attempts >= t.policy.MaxLoginAttempts {
			rec.Attempts = 0
			rec.LockedUntil = now.Add(t.policy.LockoutDuration)
			status = LoginStatus{Locked: true, RetryAfter: t.policy.LockoutDuration}
		} else {
			rec.LockedUntil = time.Time{}
			status = LoginStatus{AttemptsRemaining: t.policy.MaxLoginAttempts - rec.Attempts}
		}
		return rec, true
	})

	return status
}

// Reset deletes the record for a key after a successful login.
func (t *FailedLoginTracker) Reset(ip, identity string) {
	t.store.Delete(lockoutKey(ip, identity))
}

// SweepExpired drops records whose lockout has lapsed and whose last failure
// is older than the attempt window.
func (t *FailedLoginTracker) SweepExpired() int {
	now := t.clock.Now()
	return t.store.Sweep(func(rec lockoutRecord) bool {
		if now.Before(rec.LockedUntil) {
			return false
		}
		return now.Sub(rec.LastFailure) > t.policy.AttemptWindow
	})
}
