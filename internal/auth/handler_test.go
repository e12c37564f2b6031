package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"photofolio/internal/security"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	service := newTestService(t, newFakeClock())
	return NewHandler(service, security.DefaultPolicy(), false)
}

func doLogin(t *testing.T, h *Handler, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:52000"
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginHandler_SetsSessionCookies(t *testing.T) {
	h := newTestHandler(t)

	rec := doLogin(t, h, "alice", "correct-password")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope security.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Equal(t, security.TypeSuccess, envelope.Type)

	cookies := rec.Result().Cookies()
	access := cookieByName(cookies, security.AccessTokenCookie)
	require.NotNil(t, access)
	require.True(t, access.HttpOnly)
	require.Equal(t, "/", access.Path)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	require.Equal(t, 15*60, access.MaxAge)

	refresh := cookieByName(cookies, security.RefreshTokenCookie)
	require.NotNil(t, refresh)
	require.True(t, refresh.HttpOnly)
	require.Equal(t, 7*24*60*60, refresh.MaxAge)

	csrf := cookieByName(cookies, security.CSRFTokenCookie)
	require.NotNil(t, csrf)
	require.False(t, csrf.HttpOnly, "the csrf cookie must be readable by the frontend")
	require.NotEmpty(t, csrf.Value)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h := newTestHandler(t)

	rec := doLogin(t, h, "alice", "wrong-password")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope security.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, security.TypeUnauthorized, envelope.Type)
	require.False(t, envelope.Success)
	require.Empty(t, rec.Result().Cookies())
}

func TestLoginHandler_LockoutReportsRetryAfter(t *testing.T) {
	h := newTestHandler(t)

	for i := 0; i < 2; i++ {
		rec := doLogin(t, h, "alice", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := doLogin(t, h, "alice", "wrong-password")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var envelope security.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, security.TypeRateLimited, envelope.Type)

	// The correct password is still rejected during the lockout.
	rec = doLogin(t, h, "alice", "correct-password")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginHandler_ValidatesInput(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"username":`},
		{"unknown field", `{"username":"alice","password":"correct-password","extra":true}`},
		{"short username", `{"username":"ab","password":"correct-password"}`},
		{"short password", `{"username":"alice","password":"short"}`},
		{"username with spaces", `{"username":"al ice","password":"correct-password"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var envelope security.Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			require.Equal(t, security.TypeValidationError, envelope.Type)
		})
	}
}

func TestRefreshHandler_RoundTrip(t *testing.T) {
	h := newTestHandler(t)

	loginRec := doLogin(t, h, "alice", "correct-password")
	refresh := cookieByName(loginRec.Result().Cookies(), security.RefreshTokenCookie)
	require.NotNil(t, refresh)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotNil(t, cookieByName(cookies, security.AccessTokenCookie))
	require.NotNil(t, cookieByName(cookies, security.CSRFTokenCookie))

	rotated := cookieByName(cookies, security.RefreshTokenCookie)
	require.NotNil(t, rotated)
	require.NotEqual(t, refresh.Value, rotated.Value)
}

func TestRefreshHandler_MissingCookie(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshHandler_InvalidTokenClearsCookies(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: security.RefreshTokenCookie, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	for _, c := range rec.Result().Cookies() {
		require.Empty(t, c.Value)
		require.Equal(t, -1, c.MaxAge)
	}
}

func TestLogoutHandler_ClearsCookies(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 3)
	for _, c := range cookies {
		require.Empty(t, c.Value)
		require.Equal(t, -1, c.MaxAge)
	}
}
