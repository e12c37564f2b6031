package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenType = "refresh"

// ErrInvalidToken covers every verification failure: bad signature, malformed
// structure, expiry, wrong token type. Callers cannot distinguish an expired
// token from a forged one.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated principal embedded into a token pair.
// Immutable once issued.
type Identity struct {
	Subject  string
	Username string
	Role     string
}

// AccessClaims is the typed payload of an access token. CSRFHash binds the
// CSRF cookie to this specific token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
	CSRFHash string `json:"csrf_hash"`
}

func (c *AccessClaims) Identity() Identity {
	return Identity{Subject: c.Subject, Username: c.Username, Role: c.Role}
}

// RefreshClaims is the typed payload of a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
}

func (c *RefreshClaims) Identity() Identity {
	return Identity{Subject: c.Subject, Username: c.Username, Role: c.Role}
}

// TokenTriple is the full set of credentials issued at login and on refresh.
// The raw CSRF token goes to the client in a script-readable cookie; only its
// HMAC travels inside the access token.
type TokenTriple struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
}

type TokenService struct {
	secrets Secrets
	policy  Policy
	clock   Clock
}

func NewTokenService(secrets Secrets, policy Policy, clock Clock) *TokenService {
	if clock == nil {
		clock = SystemClock()
	}
	return &TokenService{secrets: secrets, policy: policy.Normalize(), clock: clock}
}

// GenerateTokens mints an access/refresh/CSRF triple for identity. Both JWTs
// share a fresh jti. No side effects beyond signing.
func (s *TokenService) GenerateTokens(identity Identity) (TokenTriple, error) {
	csrfToken, err := randomToken(32)
	if err != nil {
		return TokenTriple{}, fmt.Errorf("generate csrf token: %w", err)
	}

	jti, err := uuid.NewV7()
	if err != nil {
		return TokenTriple{}, fmt.Errorf("generate jti: %w", err)
	}

	now := s.clock.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.policy.AccessTTL)),
		},
		Username: identity.Username,
		Role:     identity.Role,
		CSRFHash: s.csrfHash(csrfToken),
	})
	accessToken, err := access.SignedString(s.secrets.Access)
	if err != nil {
		return TokenTriple{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.policy.RefreshTTL)),
		},
		Username:  identity.Username,
		Role:      identity.Role,
		TokenType: refreshTokenType,
	})
	refreshToken, err := refresh.SignedString(s.secrets.Refresh)
	if err != nil {
		return TokenTriple{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenTriple{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
	}, nil
}

// VerifyAccessToken validates signature and expiry against the access secret.
func (s *TokenService) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(token, claims, s.secrets.Access); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" || claims.CSRFHash == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken validates signature and expiry against the refresh
// secret and rejects tokens not marked as refresh tokens.
func (s *TokenService) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(token, claims, s.secrets.Refresh); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" || claims.TokenType != refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateCSRF reports whether the client-supplied CSRF token hashes to the
// value embedded in claims. The comparison is constant-time.
func (s *TokenService) ValidateCSRF(csrfToken string, claims *AccessClaims) bool {
	if csrfToken == "" || claims == nil || claims.CSRFHash == "" {
		return false
	}

	expected, err := hex.DecodeString(claims.CSRFHash)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secrets.CSRF)
	mac.Write([]byte(csrfToken))
	return hmac.Equal(mac.Sum(nil), expected)
}

// Refresh verifies refreshToken and mints a new triple for the same identity
// with a fresh jti. The old refresh token is not invalidated server-side; it
// remains usable until its own expiry.
func (s *TokenService) Refresh(refreshToken string) (TokenTriple, Identity, error) {
	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenTriple{}, Identity{}, err
	}

	identity := claims.Identity()
	triple, err := s.GenerateTokens(identity)
	if err != nil {
		return TokenTriple{}, Identity{}, err
	}
	return triple, identity, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenService) csrfHash(csrfToken string) string {
	mac := hmac.New(sha256.New, s.secrets.CSRF)
	mac.Write([]byte(csrfToken))
	return hex.EncodeToString(mac.Sum(nil))
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
