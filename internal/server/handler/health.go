package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the connectivity probe each backing service exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint, probing each registered
// dependency.
type HealthHandler struct {
	deps   map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Nil pingers in deps are skipped.
func NewHealthHandler(deps map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, logger: logger}
}

// HealthCheck responds with the status of each dependency. The overall status
// is "degraded" if any probe fails, and the response code stays 200 so load
// balancers do not flap on transient backend errors.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			status = "degraded"
			components[name] = err.Error()
			h.logger.WarnContext(ctx, "health probe failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
