package handlers

import (
	"net/http"
	"time"

	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/memory"
	"github.com/sallie/companion/pkg/version"
)

// DegradedReporter reports whether a dependency is running degraded.
type DegradedReporter interface {
	Degraded() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	companion *companion.Companion
	events    DegradedReporter
	started   time.Time
}

// NewHealthHandler creates a new health handler. events may be nil.
func NewHealthHandler(c *companion.Companion, events DegradedReporter) *HealthHandler {
	return &HealthHandler{
		companion: c,
		events:    events,
		started:   time.Now(),
	}
}

// StatusResponse is the body of /status.
type StatusResponse struct {
	Status         string       `json:"status"`
	Version        version.Info `json:"version"`
	Uptime         string       `json:"uptime"`
	Memory         memory.Stats `json:"memory"`
	Emotion        string       `json:"emotion"`
	Archetype      string       `json:"archetype"`
	EventsDegraded bool         `json:"events_degraded"`
}

// Health handles the /health endpoint (liveness check).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint. The service is ready once persisted
// state has been loaded.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.companion.Started() {
		response.JSON(w, http.StatusOK, map[string]bool{
			"ready": true,
		})
		return
	}
	response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
		"ready": false,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		Status:    "ok",
		Version:   version.Get(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Memory:    h.companion.Memory().Stats(),
		Emotion:   string(h.companion.Emotions().Current().Primary),
		Archetype: h.companion.Personality().Archetype().String(),
	}
	if !h.companion.Started() {
		status.Status = "starting"
	}
	if h.events != nil && h.events.Degraded() {
		status.EventsDegraded = true
		status.Status = "degraded"
	}
	response.JSON(w, http.StatusOK, status)
}
