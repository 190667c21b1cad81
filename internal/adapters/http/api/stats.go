package api

import (
	"net/http"

	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/internal/domain/stats"
	"github.com/okian/watchlog/pkg/logger"
)

// StatsHandler serves /stats.
type StatsHandler struct {
	store  repository.Store
	calc   *stats.Calculator
	logger logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store repository.Store, calc *stats.Calculator, l logger.Logger) *StatsHandler {
	return &StatsHandler{store: store, calc: calc, logger: l}
}

// HandleStats handles GET /stats/{watchId}/{cycle}.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"
	watchID, cycle, err := scopeFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	logs, err := h.store.ListLogs(r.Context(), watchID, cycle)
	if err != nil {
		h.logger.Error(r.Context(), "loading measurements for stats failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, h.calc.Compute(toPoints(logs)))
}
