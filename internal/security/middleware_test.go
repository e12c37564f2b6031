package security

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMiddleware(clock Clock) (*Middleware, *TokenService, *RequestSigner) {
	tokens := NewTokenService(testSecrets(), DefaultPolicy(), clock)
	signer := NewRequestSigner(testSecrets().Signing, NewMemoryStore[time.Time](), DefaultPolicy(), clock)
	limiter := NewRateLimiter(NewMemoryStore[rateWindow](), DefaultPolicy(), clock)
	return NewMiddleware(tokens, signer, limiter), tokens, signer
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestAuthenticate_RejectsMissingToken(t *testing.T) {
	guard, _, _ := newTestMiddleware(newFakeClock())
	next, called := okHandler()

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/photos", nil))

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.False(t, *called)
}

func TestAuthenticate_AcceptsCookieToken(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	triple, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	var gotClaims *AccessClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: triple.AccessToken})

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, gotClaims)
	require.Equal(t, "alice", gotClaims.Username)
}

func TestAuthenticate_AcceptsBearerToken(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	triple, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	next, called := okHandler()
	request := httptest.NewRequest(http.MethodGet, "/photos", nil)
	request.Header.Set("Authorization", "Bearer "+triple.AccessToken)

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, *called)
}

func TestAuthenticate_RejectsExpiredToken(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	triple, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	next, called := okHandler()
	request := httptest.NewRequest(http.MethodGet, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: triple.AccessToken})

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.False(t, *called)
}

func TestAuthenticate_RequiresCSRFForMutations(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	triple, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	next, called := okHandler()

	// Without the CSRF token the mutation is rejected.
	request := httptest.NewRequest(http.MethodPost, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: triple.AccessToken})
	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.False(t, *called)

	// With the header it passes.
	request = httptest.NewRequest(http.MethodPost, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: triple.AccessToken})
	request.Header.Set(CSRFHeader, triple.CSRFToken)
	recorder = httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, *called)
}

func TestAuthenticate_AcceptsCSRFCookieFallback(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	triple, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	next, called := okHandler()
	request := httptest.NewRequest(http.MethodPost, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: triple.AccessToken})
	request.AddCookie(&http.Cookie{Name: CSRFTokenCookie, Value: triple.CSRFToken})

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, *called)
}

func TestAuthenticate_RejectsForeignCSRFToken(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	first, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)
	second, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	next, called := okHandler()
	request := httptest.NewRequest(http.MethodPost, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: first.AccessToken})
	request.Header.Set(CSRFHeader, second.CSRFToken)

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.False(t, *called)
}

func TestAuthenticate_SkipsCSRFForReads(t *testing.T) {
	clock := newFakeClock()
	guard, tokens, _ := newTestMiddleware(clock)

	triple, err := tokens.GenerateTokens(testIdentity())
	require.NoError(t, err)

	next, called := okHandler()
	request := httptest.NewRequest(http.MethodGet, "/photos", nil)
	request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: triple.AccessToken})

	recorder := httptest.NewRecorder()
	guard.Authenticate(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, *called)
}

func TestRequireSigned_RejectsMissingHeaders(t *testing.T) {
	guard, _, _ := newTestMiddleware(newFakeClock())
	next, called := okHandler()

	recorder := httptest.NewRecorder()
	guard.RequireSigned(next).ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/users/1", nil))

	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.False(t, *called)
}

func TestRequireSigned_AcceptsValidSignature(t *testing.T) {
	clock := newFakeClock()
	guard, _, signer := newTestMiddleware(clock)

	body := []byte(`{"site_title":"New title"}`)
	timestamp := clock.Now().UnixMilli()
	signature := signer.Sign(body, timestamp, "nonce-1")

	var seenBody []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		seenBody = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	request.Header.Set(SignatureHeader, signature)
	request.Header.Set(TimestampHeader, strconv.FormatInt(timestamp, 10))
	request.Header.Set(NonceHeader, "nonce-1")

	recorder := httptest.NewRecorder()
	guard.RequireSigned(next).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, body, seenBody, "the body is restored for the handler")
}

func TestRequireSigned_RejectsReplay(t *testing.T) {
	clock := newFakeClock()
	guard, _, signer := newTestMiddleware(clock)

	body := []byte(`{}`)
	timestamp := clock.Now().UnixMilli()
	signature := signer.Sign(body, timestamp, "nonce-1")

	send := func() int {
		request := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
		request.Header.Set(SignatureHeader, signature)
		request.Header.Set(TimestampHeader, strconv.FormatInt(timestamp, 10))
		request.Header.Set(NonceHeader, "nonce-1")
		next, _ := okHandler()
		recorder := httptest.NewRecorder()
		guard.RequireSigned(next).ServeHTTP(recorder, request)
		return recorder.Code
	}

	require.Equal(t, http.StatusOK, send())
	require.Equal(t, http.StatusForbidden, send())
}

func TestRequireSigned_SkipsSafeMethods(t *testing.T) {
	guard, _, _ := newTestMiddleware(newFakeClock())
	next, called := okHandler()

	recorder := httptest.NewRecorder()
	guard.RequireSigned(next).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/settings", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, *called)
}

func TestRateLimit_EnforcesQuota(t *testing.T) {
	guard, _, _ := newTestMiddleware(newFakeClock())
	limited := guard.RateLimit("/auth/login", 3, time.Minute)

	send := func() *httptest.ResponseRecorder {
		next, _ := okHandler()
		request := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		request.RemoteAddr = "10.0.0.1:1234"
		recorder := httptest.NewRecorder()
		limited(next).ServeHTTP(recorder, request)
		return recorder
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, send().Code)
	}

	blocked := send()
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "127.0.0.1:9999"
	request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	require.Equal(t, "203.0.113.7", ClientIP(request))
}
