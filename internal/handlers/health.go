package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/videotube/backend/internal/logging"
)

const healthTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /api/v1/healthcheck.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload := map[string]string{
		"status":   "ok",
		"database": "unchecked",
	}

	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()

		if err := h.DB.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("database ping failed", "error", err)
			payload["status"] = "degraded"
			payload["database"] = "unreachable"
			respondJSON(ctx, w, http.StatusServiceUnavailable, payload)
			return
		}
		payload["database"] = "ok"
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}
