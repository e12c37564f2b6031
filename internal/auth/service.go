package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"photofolio/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type ErrLoginLocked struct {
	RetryAfter time.Duration
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (User, error)
}

// Service verifies credentials and orchestrates the lockout tracker and token
// service around them.
type Service struct {
	users   userStore
	tokens  *security.TokenService
	tracker *security.FailedLoginTracker
}

func NewService(users userStore, tokens *security.TokenService, tracker *security.FailedLoginTracker) *Service {
	return &Service{users: users, tokens: tokens, tracker: tracker}
}

// Login checks the (ip, username) lockout state, verifies credentials, and on
// success resets the tracker and issues a fresh token triple. Every failed
// attempt is recorded; an active lockout rejects attempts regardless of
// credential correctness.
func (s *Service) Login(ctx context.Context, ip, username, password string) (security.TokenTriple, security.Identity, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	password = strings.TrimSpace(password)

	if username == "" || password == "" {
		return security.TokenTriple{}, security.Identity{}, ErrInvalidCredentials
	}

	if status := s.tracker.Check(ip, username); status.Locked {
		return security.TokenTriple{}, security.Identity{}, ErrLoginLocked{RetryAfter: status.RetryAfter}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return security.TokenTriple{}, security.Identity{}, s.failureError(ip, username)
		}
		return security.TokenTriple{}, security.Identity{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return security.TokenTriple{}, security.Identity{}, s.failureError(ip, username)
	}

	s.tracker.Reset(ip, username)

	identity := security.Identity{Subject: user.ID, Username: user.Username, Role: user.Role}
	triple, err := s.tokens.GenerateTokens(identity)
	if err != nil {
		return security.TokenTriple{}, security.Identity{}, err
	}

	return triple, identity, nil
}

// Refresh trades a valid refresh token for a new triple.
func (s *Service) Refresh(refreshToken string) (security.TokenTriple, security.Identity, error) {
	return s.tokens.Refresh(strings.TrimSpace(refreshToken))
}

func (s *Service) failureError(ip, username string) error {
	status := s.tracker.RecordFailure(ip, username)
	if status.Locked {
		return ErrLoginLocked{RetryAfter: status.RetryAfter}
	}
	return ErrInvalidCredentials
}
