package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/toolloop/toolloop/internal/models"
)

const version = "1.0.0"

// HealthChecker is implemented by services that can report connectivity
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

// HealthHandler handles GET /health with optional dependency checks
type HealthHandler struct {
	provider string
	checks   map[string]HealthChecker
}

// NewHealthHandler reports provider as the model check. Nil checkers are
// reported as disabled.
func NewHealthHandler(provider string, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{provider: provider, checks: checks}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok", "model": h.provider}
	overallStatus := "healthy"

	// Use a short timeout for health checks so they don't block
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checker := h.checks[name]
		if checker == nil {
			checks[name] = "disabled"
			continue
		}
		if err := checker.TestConnection(ctx); err != nil {
			checks[name] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
