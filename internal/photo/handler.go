package photo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"photofolio/internal/security"
)

var allowedURLChars = regexp.MustCompile(`^[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+$`)
var allowedHost = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

const maxJSONBodyBytes = 1 << 20

type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource string) (string, error)
}

type Handler struct {
	repo     *Repository
	uploader ImageUploader
}

func NewHandler(repo *Repository, uploader ImageUploader) *Handler {
	return &Handler{repo: repo, uploader: uploader}
}

func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	categoryID := strings.TrimSpace(r.URL.Query().Get("category"))
	if categoryID != "" {
		if _, err := uuid.Parse(categoryID); err != nil {
			security.WriteResponse(w, security.TypeValidationError, "invalid category id", nil)
			return
		}
	}

	photos, err := h.repo.List(r.Context(), categoryID)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to list photos", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", photos)
}

func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid photo id", nil)
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "photo not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to load photo", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", p)
}

func (h *Handler) CreatePhoto(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		security.WriteResponse(w, security.TypeServerError, "image uploader is not configured", nil)
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	uploadedURL, err := h.uploader.UploadImage(r.Context(), input.ImageURL)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to upload image", nil)
		return
	}
	input.ImageURL = uploadedURL

	p, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to create photo", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "photo created", p)
}

func (h *Handler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		security.WriteResponse(w, security.TypeServerError, "image uploader is not configured", nil)
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid photo id", nil)
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	uploadedURL, err := h.uploader.UploadImage(r.Context(), input.ImageURL)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to upload image", nil)
		return
	}
	input.ImageURL = uploadedURL

	p, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "photo not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to update photo", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", p)
}

func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid photo id", nil)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "photo not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to delete photo", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", nil)
}

func parseInput(w http.ResponseWriter, r *http.Request) (PhotoInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input PhotoInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid json body", nil)
		return PhotoInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	if input.Title == "" {
		security.WriteResponse(w, security.TypeValidationError, "title is required", nil)
		return PhotoInput{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 150 {
		security.WriteResponse(w, security.TypeValidationError, "title is invalid", nil)
		return PhotoInput{}, false
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 2000 {
		security.WriteResponse(w, security.TypeValidationError, "description is invalid", nil)
		return PhotoInput{}, false
	}
	if input.CategoryID != nil {
		if _, err := uuid.Parse(*input.CategoryID); err != nil {
			security.WriteResponse(w, security.TypeValidationError, "category_id is invalid", nil)
			return PhotoInput{}, false
		}
	}
	if input.DisplayOrder < 0 {
		security.WriteResponse(w, security.TypeValidationError, "display_order must be >= 0", nil)
		return PhotoInput{}, false
	}
	if !validImageURL(w, input.ImageURL) {
		return PhotoInput{}, false
	}

	return input, true
}

func validImageURL(w http.ResponseWriter, rawURL string) bool {
	if rawURL == "" {
		security.WriteResponse(w, security.TypeValidationError, "image_url is required", nil)
		return false
	}
	if len(rawURL) > 500 || !isASCII(rawURL) || !allowedURLChars.MatchString(rawURL) {
		security.WriteResponse(w, security.TypeValidationError, "image_url contains invalid characters", nil)
		return false
	}
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		security.WriteResponse(w, security.TypeValidationError, "image_url must be a valid link", nil)
		return false
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		security.WriteResponse(w, security.TypeValidationError, "image_url must start with http or https", nil)
		return false
	}
	if parsedURL.User != nil || !allowedHost.MatchString(parsedURL.Hostname()) {
		security.WriteResponse(w, security.TypeValidationError, "image_url host is invalid", nil)
		return false
	}
	return true
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 32 || value[i] > 126 {
			return false
		}
	}
	return true
}
