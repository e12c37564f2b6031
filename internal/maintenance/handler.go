package maintenance

import (
	"net/http"
	"strings"

	"photofolio/internal/observability"
	"photofolio/internal/security"
)

// SweepHandler exposes a cron-secret-guarded endpoint that forces an
// immediate sweep of the in-memory security stores. The periodic sweeper
// already runs on its own schedule; this exists for operational visibility
// and for serverless hosts where background timers may be suspended.
type SweepHandler struct {
	sweeper    *security.Sweeper
	logger     *observability.Logger
	cronSecret string
}

func NewSweepHandler(sweeper *security.Sweeper, logger *observability.Logger, cronSecret string) *SweepHandler {
	return &SweepHandler{
		sweeper:    sweeper,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		security.WriteResponse(w, security.TypeNotFound, "not found", nil)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		security.WriteResponse(w, security.TypeUnauthorized, "unauthorized", nil)
		return
	}

	counts := h.sweeper.SweepNow()

	fields := make(map[string]any, len(counts))
	for name, deleted := range counts {
		fields[name] = deleted
	}
	h.logger.Info("security_sweep_completed", fields)

	security.WriteResponse(w, security.TypeSuccess, "", map[string]any{"deleted": counts})
}
