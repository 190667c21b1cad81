package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/internal/domain/stats"
	"github.com/okian/watchlog/pkg/logger"
)

// MeasurementsHandler serves /measurements.
type MeasurementsHandler struct {
	store  repository.Store
	logger logger.Logger
}

// NewMeasurementsHandler creates a new measurements handler.
func NewMeasurementsHandler(store repository.Store, l logger.Logger) *MeasurementsHandler {
	return &MeasurementsHandler{store: store, logger: l}
}

type createMeasurementRequest struct {
	Datetime *model.Timestamp `json:"datetime"`
	Measure  *float64         `json:"measure"`
}

func (req createMeasurementRequest) validate() error {
	switch {
	case req.Datetime == nil || req.Datetime.IsZero():
		return errors.New("missing datetime")
	case req.Measure == nil:
		return errors.New("missing measure")
	}
	return nil
}

// HandleList handles GET /measurements/{watchId}/{cycle}. Each record carries
// the difference to the previous one, rounded to one decimal.
func (h *MeasurementsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_measurements"
	watchID, cycle, err := scopeFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	logs, err := h.store.ListLogs(r.Context(), watchID, cycle)
	if err != nil {
		h.logger.Error(r.Context(), "listing measurements failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, toMeasurements(logs))
}

// HandleCreate handles POST /measurements/{watchId}/{cycle}.
func (h *MeasurementsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_measurement"
	watchID, cycle, err := scopeFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req createMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	log, err := h.store.AddLog(r.Context(), watchID, cycle, req.Datetime.Time, *req.Measure)
	switch {
	case errors.Is(err, repository.ErrWatchNotFound):
		writeMessage(w, http.StatusBadRequest, "bad_request", "Failed to insert.")
		return
	case err != nil:
		h.logger.Error(r.Context(), "creating measurement failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	h.logger.Info(r.Context(), "measurement created",
		logger.Any("watchID", watchID),
		logger.Int("cycle", cycle),
		logger.Any("logID", log.ID),
	)
	writeJSON(w, http.StatusCreated, h.created(r, watchID, cycle, log))
}

// created returns the new record as the cycle listing shows it, including its
// difference to the preceding reading.
func (h *MeasurementsHandler) created(r *http.Request, watchID int64, cycle int, log repository.Log) model.Measurement {
	logs, err := h.store.ListLogs(r.Context(), watchID, cycle)
	if err != nil {
		h.logger.Warn(r.Context(), "listing cycle for created measurement failed", logger.Error(err))
		return toMeasurement(log, nil)
	}
	for _, m := range toMeasurements(logs) {
		if m.ID == model.ID(strconv.FormatInt(log.ID, 10)) {
			return m
		}
	}
	return toMeasurement(log, nil)
}

// HandleDelete handles DELETE /measurements/{id}.
func (h *MeasurementsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_measurement"
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	err = h.store.DeleteLog(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusBadRequest, "not_found", "Log not found.")
		return
	case err != nil:
		h.logger.Error(r.Context(), "deleting measurement failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, okResponse)
}

func scopeFromPath(r *http.Request) (int64, int, error) {
	watchID, err := pathInt64(r, "watchId")
	if err != nil {
		return 0, 0, err
	}
	cycle, err := pathCycle(r)
	if err != nil {
		return 0, 0, err
	}
	return watchID, cycle, nil
}

func toPoints(logs []repository.Log) []stats.Point {
	points := make([]stats.Point, len(logs))
	for i, l := range logs {
		points[i] = stats.Point{At: l.At, Measure: l.Measure}
	}
	return points
}

func toMeasurements(logs []repository.Log) []model.Measurement {
	diffs := stats.Differences(toPoints(logs))
	out := make([]model.Measurement, len(logs))
	for i, l := range logs {
		out[i] = toMeasurement(l, diffs[i])
	}
	return out
}

func toMeasurement(l repository.Log, diff *float64) model.Measurement {
	return model.Measurement{
		ID:         model.ID(strconv.FormatInt(l.ID, 10)),
		Datetime:   model.NewTimestamp(l.At),
		Measure:    l.Measure,
		Difference: diff,
	}
}
