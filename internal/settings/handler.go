package settings

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"

	"photofolio/internal/security"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Get(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to load settings", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", s)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input SettingsInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid json body", nil)
		return
	}

	input.SiteTitle = strings.TrimSpace(input.SiteTitle)
	input.AboutText = strings.TrimSpace(input.AboutText)
	input.ContactEmail = strings.TrimSpace(input.ContactEmail)

	if input.SiteTitle == "" || !utf8.ValidString(input.SiteTitle) || len(input.SiteTitle) > 150 {
		security.WriteResponse(w, security.TypeValidationError, "site_title is invalid", nil)
		return
	}
	if !utf8.ValidString(input.AboutText) || len(input.AboutText) > 5000 {
		security.WriteResponse(w, security.TypeValidationError, "about_text is invalid", nil)
		return
	}
	if input.ContactEmail != "" {
		if _, err := mail.ParseAddress(input.ContactEmail); err != nil {
			security.WriteResponse(w, security.TypeValidationError, "contact_email is invalid", nil)
			return
		}
	}
	if len(input.SocialLinks) > 20 {
		security.WriteResponse(w, security.TypeValidationError, "too many social links", nil)
		return
	}
	for name, link := range input.SocialLinks {
		parsed, err := url.ParseRequestURI(link)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || len(name) > 50 {
			security.WriteResponse(w, security.TypeValidationError, "social link is invalid", nil)
			return
		}
	}

	s, err := h.repo.Update(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to update settings", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", s)
}
