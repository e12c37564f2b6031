package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"photofolio/internal/security"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service       *Service
	accessTTL     time.Duration
	refreshTTL    time.Duration
	secureCookies bool
}

func NewHandler(service *Service, policy security.Policy, secureCookies bool) *Handler {
	policy = policy.Normalize()
	return &Handler{
		service:       service,
		accessTTL:     policy.AccessTTL,
		refreshTTL:    policy.RefreshTTL,
		secureCookies: secureCookies,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid json body", nil)
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Password = strings.TrimSpace(body.Password)
	if !usernameRegex.MatchString(strings.ToLower(body.Username)) {
		security.WriteResponse(w, security.TypeValidationError, "username format is invalid", nil)
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		security.WriteResponse(w, security.TypeValidationError, "password format is invalid", nil)
		return
	}

	triple, identity, err := h.service.Login(r.Context(), security.ClientIP(r), body.Username, body.Password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	h.setSessionCookies(w, triple)
	security.WriteResponse(w, security.TypeSuccess, "", SessionInfo{
		Subject:  identity.Subject,
		Username: identity.Username,
		Role:     identity.Role,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(security.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		security.WriteResponse(w, security.TypeUnauthorized, "authentication required", nil)
		return
	}

	triple, identity, err := h.service.Refresh(cookie.Value)
	if err != nil {
		h.clearSessionCookies(w)
		security.WriteResponse(w, security.TypeUnauthorized, "invalid or expired session", nil)
		return
	}

	h.setSessionCookies(w, triple)
	security.WriteResponse(w, security.TypeSuccess, "", SessionInfo{
		Subject:  identity.Subject,
		Username: identity.Username,
		Role:     identity.Role,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookies(w)
	security.WriteResponse(w, security.TypeSuccess, "", nil)
}

// Me reports the authenticated session. Runs behind the session middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := security.ClaimsFromContext(r.Context())
	if !ok {
		security.WriteResponse(w, security.TypeUnauthorized, "authentication required", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", SessionInfo{
		Subject:  claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
	})
}

func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidCredentials) {
		security.WriteResponse(w, security.TypeUnauthorized, "invalid credentials", nil)
		return
	}

	var lockedErr ErrLoginLocked
	if errors.As(err, &lockedErr) {
		retryAfter := int(lockedErr.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		security.WriteResponse(w, security.TypeRateLimited, "account temporarily locked", map[string]any{
			"retry_after_seconds": retryAfter,
		})
		return
	}

	sentry.CaptureException(err)
	security.WriteResponse(w, security.TypeServerError, "failed to login", nil)
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, triple security.TokenTriple) {
	h.setCookie(w, security.AccessTokenCookie, triple.AccessToken, h.accessTTL, true)
	h.setCookie(w, security.RefreshTokenCookie, triple.RefreshToken, h.refreshTTL, true)
	h.setCookie(w, security.CSRFTokenCookie, triple.CSRFToken, h.accessTTL, false)
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	h.setCookie(w, security.AccessTokenCookie, "", -time.Second, true)
	h.setCookie(w, security.RefreshTokenCookie, "", -time.Second, true)
	h.setCookie(w, security.CSRFTokenCookie, "", -time.Second, false)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, httpOnly bool) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
	} else {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
