package security

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ResponseType is the closed taxonomy every outbound payload is classified
// under. Each type maps to exactly one HTTP status, except SUCCESS which
// becomes 204 when there is nothing to return.
type ResponseType string

const (
	TypeSuccess         ResponseType = "SUCCESS"
	TypeError           ResponseType = "ERROR"
	TypeValidationError ResponseType = "VALIDATION_ERROR"
	TypeUnauthorized    ResponseType = "UNAUTHORIZED"
	TypeForbidden       ResponseType = "FORBIDDEN"
	TypeNotFound        ResponseType = "NOT_FOUND"
	TypeRateLimited     ResponseType = "RATE_LIMITED"
	TypeServerError     ResponseType = "SERVER_ERROR"
)

const redactionMarker = "[REDACTED]"

func (t ResponseType) Status() int {
	switch t {
	case TypeSuccess:
		return http.StatusOK
	case TypeError, TypeValidationError:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the standard response shape.
type Envelope struct {
	Type    ResponseType `json:"type"`
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
}

var sensitivePatterns = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"credential",
	"connectionstring",
	"connection_string",
	"apikey",
	"api_key",
	"privatekey",
	"private_key",
}

var stackPatterns = []string{
	"stack",
	"stacktrace",
	"stack_trace",
	"trace",
	"traceback",
}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	switch lower {
	case "key", "salt", "hash":
		return true
	}
	return strings.HasSuffix(lower, "_key") || strings.HasSuffix(lower, "-key") ||
		strings.HasSuffix(lower, "_salt") || strings.HasSuffix(lower, "hash")
}

func isStackField(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range stackPatterns {
		if lower == pattern {
			return true
		}
	}
	return false
}

// Sanitize walks payload and removes every field whose name looks sensitive,
// at any depth, including inside arrays. When fromError is set, stack-trace
// fields are replaced with a redaction marker instead of removed, keeping the
// response shape stable for clients that check key presence. The payload is
// round-tripped through JSON, so only what would serialize is inspected.
func Sanitize(payload any, fromError bool) any {
	if payload == nil {
		return nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil
	}

	return scrub(decoded, fromError)
}

func scrub(value any, fromError bool) any {
	switch typed := value.(type) {
	case map[string]any:
		for name, nested := range typed {
			if isSensitiveField(name) {
				delete(typed, name)
				continue
			}
			if fromError && isStackField(name) {
				typed[name] = redactionMarker
				continue
			}
			typed[name] = scrub(nested, fromError)
		}
		return typed
	case []any:
		for i, nested := range typed {
			typed[i] = scrub(nested, fromError)
		}
		return typed
	default:
		return value
	}
}

// WriteResponse sanitizes data and writes the standard envelope with the
// status implied by rtype. A SUCCESS response with no message and no data is
// written as 204 with an empty body.
func WriteResponse(w http.ResponseWriter, rtype ResponseType, message string, data any) {
	success := rtype == TypeSuccess
	if success && message == "" && data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	envelope := Envelope{
		Type:    rtype,
		Success: success,
		Message: message,
		Data:    Sanitize(data, !success),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rtype.Status())
	_ = json.NewEncoder(w).Encode(envelope)
}
