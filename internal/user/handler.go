package user

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"photofolio/internal/security"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

const maxJSONBodyBytes = 1 << 20

var allowedRoles = map[string]struct{}{
	"admin":  {},
	"editor": {},
}

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to list users", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r, true)
	if !ok {
		return
	}

	u, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to create user", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "user created", u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid user id", nil)
		return
	}

	input, ok := parseInput(w, r, false)
	if !ok {
		return
	}

	u, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "user not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to update user", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid user id", nil)
		return
	}

	claims, ok := security.ClaimsFromContext(r.Context())
	if ok && claims.Subject == id {
		security.WriteResponse(w, security.TypeValidationError, "cannot delete the current user", nil)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.WriteResponse(w, security.TypeNotFound, "user not found", nil)
			return
		}
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to delete user", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", nil)
}

func parseInput(w http.ResponseWriter, r *http.Request, passwordRequired bool) (UserInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input UserInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		security.WriteResponse(w, security.TypeValidationError, "invalid json body", nil)
		return UserInput{}, false
	}

	input.Username = strings.TrimSpace(strings.ToLower(input.Username))
	input.Password = strings.TrimSpace(input.Password)
	input.Role = strings.TrimSpace(strings.ToLower(input.Role))

	if !usernameRegex.MatchString(input.Username) {
		security.WriteResponse(w, security.TypeValidationError, "username format is invalid", nil)
		return UserInput{}, false
	}
	if passwordRequired || input.Password != "" {
		if len(input.Password) < 8 || len(input.Password) > 200 {
			security.WriteResponse(w, security.TypeValidationError, "password format is invalid", nil)
			return UserInput{}, false
		}
	}
	if _, ok := allowedRoles[input.Role]; !ok {
		security.WriteResponse(w, security.TypeValidationError, "role is invalid", nil)
		return UserInput{}, false
	}

	return input, true
}
