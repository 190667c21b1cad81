// Package api serves the watch log REST contract.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/internal/domain/stats"
	"github.com/okian/watchlog/pkg/logger"
)

// Server wires HTTP routes for the watch log API.
type Server struct {
	store   repository.Store
	logger  logger.Logger
	calc    *stats.Calculator
	origins []string

	healthHandler       *HealthHandler
	watchesHandler      *WatchesHandler
	measurementsHandler *MeasurementsHandler
	statsHandler        *StatsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCalculator sets the calculator used for /stats.
func WithCalculator(c *stats.Calculator) Option {
	return func(s *Server) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithAllowedOrigins sets the origins allowed by CORS. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates a new API server over store.
func NewServer(store repository.Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: logger.Get().Named("api"),
		calc:   stats.NewCalculator(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler(store)
	s.watchesHandler = NewWatchesHandler(store, s.logger)
	s.measurementsHandler = NewMeasurementsHandler(store, s.logger)
	s.statsHandler = NewStatsHandler(store, s.calc, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())

	mux.HandleFunc("GET /watchlist", MetricsMiddleware(s.watchesHandler.HandleList, "watchlist"))
	mux.HandleFunc("POST /watchlist", MetricsMiddleware(s.watchesHandler.HandleCreate, "watchlist"))
	mux.HandleFunc("DELETE /watchlist/{id}", MetricsMiddleware(s.watchesHandler.HandleDelete, "watchlist_item"))

	mux.HandleFunc("GET /measurements/{watchId}/{cycle}", MetricsMiddleware(s.measurementsHandler.HandleList, "measurements"))
	mux.HandleFunc("POST /measurements/{watchId}/{cycle}", MetricsMiddleware(s.measurementsHandler.HandleCreate, "measurements"))
	mux.HandleFunc("DELETE /measurements/{id}", MetricsMiddleware(s.measurementsHandler.HandleDelete, "measurement_item"))

	mux.HandleFunc("GET /stats/{watchId}/{cycle}", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

// Handler wraps h with the server's CORS policy.
func (s *Server) Handler(h http.Handler) http.Handler {
	return CORSMiddleware(h, s.origins...)
}

type statusResponse struct {
	Status string `json:"status"`
}

var okResponse = statusResponse{Status: "ok"}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	var kerr *KindError
	switch {
	case errors.As(err, &kerr):
		msg = kerr.Message()
	case err != nil:
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func pathCycle(r *http.Request) (int, error) {
	v, err := strconv.Atoi(r.PathValue("cycle"))
	if err != nil || v < 0 {
		return 0, errors.New("invalid cycle")
	}
	return v, nil
}
