package category

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"photofolio/internal/security"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to list categories", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	c, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to create category", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "category created", c)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid category id", nil)
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	c, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "category not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to update category", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid category id", nil)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "category not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to delete category", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", nil)
}

func parseInput(w http.ResponseWriter, r *http.Request) (CategoryInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input CategoryInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid json body", nil)
		return CategoryInput{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(strings.ToLower(input.Slug))
	input.Description = strings.TrimSpace(input.Description)

	if input.Name == "" {
		security.WriteResponse(w, security.TypeValidationError, "name is required", nil)
		return CategoryInput{}, false
	}
	if !utf8.ValidString(input.Name) || len(input.Name) > 100 {
		security.WriteResponse(w, security.TypeValidationError, "name is invalid", nil)
		return CategoryInput{}, false
	}
	if input.Slug == "" {
		input.Slug = Slugify(input.Name)
	}
	if !ValidSlug(input.Slug) || len(input.Slug) > 100 {
		security.WriteResponse(w, security.TypeValidationError, "slug is invalid", nil)
		return CategoryInput{}, false
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 1000 {
		security.WriteResponse(w, security.TypeValidationError, "description is invalid", nil)
		return CategoryInput{}, false
	}

	return input, true
}
