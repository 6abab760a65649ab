package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/predexlabs/oppengine/internal/domain"
)

// HealthHandler serves the health endpoint, combining server liveness with
// the latest per-venue feed health.
type HealthHandler struct {
	health domain.HealthStore
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. health may be nil in server-only
// deployments; venue status is then omitted.
func NewHealthHandler(health domain.HealthStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{health: health, logger: logger}
}

// HealthCheck reports server liveness plus the current venue health states.
// Overall status degrades to the worst venue state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		venues, err := h.health.List(r.Context())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list venue health failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read venue health")
			return
		}
		resp["venues"] = venues
		for _, v := range venues {
			if v.Status == domain.HealthRed {
				resp["status"] = "degraded"
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
