package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/meditech/hemascan/llm"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	logger    *zap.Logger
	providers []llm.VisionProvider
}

// HealthStatus is the probe response body.
type HealthStatus struct {
	Status    string            `json:"status"` // "healthy", "degraded"
	Timestamp time.Time         `json:"timestamp"`
	Providers map[string]string `json:"providers,omitempty"` // name -> "available"/"unavailable"
}

// NewHealthHandler creates a health handler over the configured
// providers.
func NewHealthHandler(providers []llm.VisionProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger, providers: providers}
}

// HandleHealth serves GET /health: process liveness only.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady serves GET /readyz: healthy when at least one provider has
// a credential, degraded otherwise. Availability checks are pure, so this
// never touches the network.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "degraded",
		Timestamp: time.Now(),
		Providers: make(map[string]string, len(h.providers)),
	}
	for _, p := range h.providers {
		if p.Available() {
			status.Status = "healthy"
			status.Providers[p.Name()] = "available"
		} else {
			status.Providers[p.Name()] = "unavailable"
		}
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}
