package api

import (
	"net/http"

	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	store repository.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store repository.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

type healthResponse struct {
	Status       string `json:"status"`
	Watches      int    `json:"watches"`
	Measurements int    `json:"measurements"`
}

// HandleHealth handles GET /healthz. It reports 503 when the store cannot be read.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	watches, logs, err := h.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	metrics.UpdateRepositoryWatches(watches)
	metrics.UpdateRepositoryMeasurements(logs)
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Watches: watches, Measurements: logs})
}

// MetricsHandler serves the process's Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
