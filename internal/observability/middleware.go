package observability

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"

	"photofolio/internal/security"
)

// responseMeta captures the status and body size a handler wrote.
type responseMeta struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeta) WriteHeader(status int) {
	m.status = status
	m.ResponseWriter.WriteHeader(status)
}

func (m *responseMeta) Write(p []byte) (int, error) {
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

// RequestLoggingMiddleware logs one line per request.
func RequestLoggingMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meta := &responseMeta{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(meta, r)

		logger.Info("http_request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      meta.status,
			"bytes":       meta.bytes,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          security.ClientIP(r),
		})
	})
}

// RecoverMiddleware turns panics into sanitized 500 responses. The stack
// trace goes to Sentry and the log, never to the client.
func RecoverMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			hub := sentry.CurrentHub().Clone()
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetExtra("panic", rec)
				scope.SetTag("path", r.URL.Path)
				hub.CaptureMessage("panic in request handler")
			})

			logger.Error("panic_recovered", map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"panic":  rec,
				"stack":  string(debug.Stack()),
			})

			security.WriteResponse(w, security.TypeServerError, "internal server error", nil)
		}()

		next.ServeHTTP(w, r)
	})
}
