package security

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// AccessTokenCookie carries the signed access JWT.
	AccessTokenCookie = "access_token"
	// RefreshTokenCookie carries the signed refresh JWT.
	RefreshTokenCookie = "refresh_token"
	// CSRFTokenCookie carries the raw CSRF value, readable by scripts.
	CSRFTokenCookie = "csrf_token"

	// CSRFHeader is checked before falling back to the CSRF cookie.
	CSRFHeader = "X-CSRF-Token"

	SignatureHeader = "X-API-Signature"
	TimestampHeader = "X-API-Timestamp"
	NonceHeader     = "X-API-Nonce"

	maxSignedBodyBytes = 1 << 20
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims placed by Authenticate.
func ClaimsFromContext(ctx context.Context) (*AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*AccessClaims)
	return claims, ok
}

// Middleware wires the security components into per-request checks. It is the
// only part of the layer with knowledge of all the others.
type Middleware struct {
	tokens  *TokenService
	signer  *RequestSigner
	limiter *RateLimiter
}

func NewMiddleware(tokens *TokenService, signer *RequestSigner, limiter *RateLimiter) *Middleware {
	return &Middleware{tokens: tokens, signer: signer, limiter: limiter}
}

// RateLimit enforces a fixed-window quota per client IP for route.
func (m *Middleware) RateLimit(route string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := m.limiter.Check(RateKey(ClientIP(r), route), limit, window)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				retryAfter := int(result.ResetAt.Sub(m.limiter.clock.Now()).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				WriteResponse(w, TypeRateLimited, "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate verifies the access token from the access_token cookie or a
// Bearer header, then enforces CSRF binding on non-safe methods. The verified
// claims are placed on the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			WriteResponse(w, TypeUnauthorized, "authentication required", nil)
			return
		}

		claims, err := m.tokens.VerifyAccessToken(token)
		if err != nil {
			WriteResponse(w, TypeUnauthorized, "invalid or expired session", nil)
			return
		}

		if !isSafeMethod(r.Method) {
			if !m.tokens.ValidateCSRF(csrfTokenFromRequest(r), claims) {
				WriteResponse(w, TypeForbidden, "invalid csrf token", nil)
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSigned verifies the HMAC request signature on mutating methods.
// Safe methods pass through unsigned. Missing headers reject immediately.
func (m *Middleware) RequireSigned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
		rawTimestamp := strings.TrimSpace(r.Header.Get(TimestampHeader))
		nonce := strings.TrimSpace(r.Header.Get(NonceHeader))
		if signature == "" || rawTimestamp == "" || nonce == "" {
			WriteResponse(w, TypeForbidden, "request signature required", nil)
			return
		}

		timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
		if err != nil {
			WriteResponse(w, TypeForbidden, "invalid request signature", nil)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
		if err != nil {
			WriteResponse(w, TypeError, "failed to read request body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !m.signer.Verify(body, signature, timestamp, nonce) {
			WriteResponse(w, TypeForbidden, "invalid request signature", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func csrfTokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get(CSRFHeader)); header != "" {
		return header
	}
	if cookie, err := r.Cookie(CSRFTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// ClientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop.
func ClientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
