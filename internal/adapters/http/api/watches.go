package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
)

// WatchesHandler serves /watchlist.
type WatchesHandler struct {
	store  repository.Store
	logger logger.Logger
}

// NewWatchesHandler creates a new watches handler.
func NewWatchesHandler(store repository.Store, l logger.Logger) *WatchesHandler {
	return &WatchesHandler{store: store, logger: l}
}

type createWatchRequest struct {
	Name string `json:"name"`
}

// HandleList handles GET /watchlist.
func (h *WatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_watches"
	watches, err := h.store.ListWatches(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "listing watches failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	out := make([]model.Watch, len(watches))
	for i, watch := range watches {
		out[i] = toModelWatch(watch)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /watchlist.
func (h *WatchesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_watch"
	var req createWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing name")))
		return
	}

	watch, err := h.store.CreateWatch(r.Context(), name)
	switch {
	case errors.Is(err, repository.ErrDuplicateWatch):
		writeMessage(w, http.StatusBadRequest, "duplicate", fmt.Sprintf("Watch '%s' already exists.", name))
		return
	case err != nil:
		h.logger.Error(r.Context(), "creating watch failed", logger.String("name", name), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	h.logger.Info(r.Context(), "watch created", logger.Any("id", watch.ID), logger.String("name", watch.Name))
	writeJSON(w, http.StatusCreated, toModelWatch(watch))
}

// HandleDelete handles DELETE /watchlist/{id}.
func (h *WatchesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_watch"
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	err = h.store.DeleteWatch(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not_found", fmt.Sprintf("Watch %d does not exist.", id))
		return
	case err != nil:
		h.logger.Error(r.Context(), "deleting watch failed", logger.Any("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	h.logger.Info(r.Context(), "watch deleted", logger.Any("id", id))
	writeJSON(w, http.StatusOK, okResponse)
}

func toModelWatch(w repository.Watch) model.Watch {
	cycles := w.Cycles
	if cycles == nil {
		cycles = []int{}
	}
	return model.Watch{
		ID:     model.ID(strconv.FormatInt(w.ID, 10)),
		Name:   w.Name,
		Cycles: cycles,
	}
}
