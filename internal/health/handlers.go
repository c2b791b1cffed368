package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zsiec/simviz/pkg/version"
)

// Response represents the health check response.
type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]*Check `json:"checks,omitempty"`
}

// Handler handles health check HTTP endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

// NewHandler creates a new health check handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager:   manager,
		startTime: time.Now(),
	}
}

// HandleHealth handles the /health endpoint.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	// Run health checks with request context
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	overallStatus := h.manager.GetOverallStatus()

	response := Response{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Version:   version.GetInfo().Version,
		Uptime:    h.getUptime(),
		Checks:    checks,
	}

	// Set appropriate status code
	// Degraded still serves traffic.
	statusCode := http.StatusOK
	if overallStatus == StatusDown {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
}

// HandleReady handles the /ready endpoint. It reports the last completed
// run of the checks and runs them once if none has completed yet.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if len(h.manager.GetResults()) == 0 {
		h.manager.RunChecks(r.Context())
	}
	overallStatus := h.manager.GetOverallStatus()

	response := struct {
		Status    Status    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    overallStatus,
		Timestamp: time.Now(),
	}

	statusCode := http.StatusOK
	if overallStatus == StatusDown {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
}

// HandleLive handles the /live endpoint (basic liveness check).
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "alive",
		Timestamp: time.Now(),
	}

	h.writeJSON(w, http.StatusOK, response)
}

// getUptime returns the service uptime rounded to the second.
func (h *Handler) getUptime() string {
	return time.Since(h.startTime).Round(time.Second).String()
}

// HandleVersion handles the /version endpoint.
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, version.GetInfo())
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
