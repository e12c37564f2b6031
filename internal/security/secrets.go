package security

import (
	"errors"
	"time"
)

const (
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultMaxAttempts     = 3
	defaultAttemptWindow   = 30 * time.Minute
	defaultLockoutDuration = 5 * time.Minute
	defaultSignatureMaxAge = 5 * time.Minute
	defaultSweepInterval   = 5 * time.Minute
	defaultRateStaleAfter  = 10 * time.Minute
)

// Secrets holds the signing keys for the security layer. Read-only after
// bootstrap.
type Secrets struct {
	Access  []byte
	Refresh []byte
	CSRF    []byte
	Signing []byte
}

func NewSecrets(access, refresh, csrf, signing string) (Secrets, error) {
	if access == "" || refresh == "" || csrf == "" || signing == "" {
		return Secrets{}, errors.New("all signing secrets are required")
	}
	return Secrets{
		Access:  []byte(access),
		Refresh: []byte(refresh),
		CSRF:    []byte(csrf),
		Signing: []byte(signing),
	}, nil
}

// Policy holds the tunable constants for token lifetimes, lockout, rate
// limiting, and request signing. Read-only after bootstrap.
type Policy struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	MaxLoginAttempts int
	AttemptWindow    time.Duration
	LockoutDuration  time.Duration
	SignatureMaxAge  time.Duration
	SweepInterval    time.Duration
	RateStaleAfter   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		MaxLoginAttempts: defaultMaxAttempts,
		AttemptWindow:    defaultAttemptWindow,
		LockoutDuration:  defaultLockoutDuration,
		SignatureMaxAge:  defaultSignatureMaxAge,
		SweepInterval:    defaultSweepInterval,
		RateStaleAfter:   defaultRateStaleAfter,
	}
}

// Normalize replaces non-positive fields with their defaults.
func (p Policy) Normalize() Policy {
	defaults := DefaultPolicy()
	if p.AccessTTL <= 0 {
		p.AccessTTL = defaults.AccessTTL
	}
	if p.RefreshTTL <= 0 {
		p.RefreshTTL = defaults.RefreshTTL
	}
	if p.MaxLoginAttempts <= 0 {
		p.MaxLoginAttempts = defaults.MaxLoginAttempts
	}
	if p.AttemptWindow <= 0 {
		p.AttemptWindow = defaults.AttemptWindow
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = defaults.LockoutDuration
	}
	if p.SignatureMaxAge <= 0 {
		p.SignatureMaxAge = defaults.SignatureMaxAge
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = defaults.SweepInterval
	}
	if p.RateStaleAfter <= 0 {
		p.RateStaleAfter = defaults.RateStaleAfter
	}
	return p
}
