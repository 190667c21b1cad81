// Package client is the REST client for the watch log backend.
//
// Every call is a single attempt: failures are classified and returned as
// *TransportError and are never retried here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	userAgent       = "watchlog/0.1"
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
	newID      func() string
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestIDs overrides request id generation.
func WithRequestIDs(newID func() string) Option {
	return func(c *Client) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// New creates a client for the backend at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.Get().Named("client"),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListWatches fetches every watch with its cycles.
func (c *Client) ListWatches(ctx context.Context) ([]model.Watch, error) {
	var out []model.Watch
	if err := c.do(ctx, http.MethodGet, "/watchlist", "/watchlist", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Cycles == nil {
			out[i].Cycles = []int{}
		}
	}
	return out, nil
}

// CreateWatch creates a watch named name.
func (c *Client) CreateWatch(ctx context.Context, name string) (model.Watch, error) {
	var out model.Watch
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/watchlist", "/watchlist", body, &out); err != nil {
		return model.Watch{}, err
	}
	return out, nil
}

// DeleteWatch deletes the watch with the given id.
func (c *Client) DeleteWatch(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/watchlist/"+url.PathEscape(id.String()), "/watchlist/{id}", nil, nil)
}

// ListMeasurements fetches one cycle's measurements in time order.
func (c *Client) ListMeasurements(ctx context.Context, watchID model.ID, cycle int) ([]model.Measurement, error) {
	var out []model.Measurement
	if err := c.do(ctx, http.MethodGet, cyclePath("/measurements", watchID, cycle), "/measurements/{watchId}/{cycle}", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Measurement{}
	}
	return out, nil
}

// CreateMeasurement records measure taken at at.
func (c *Client) CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, measure float64) error {
	body := struct {
		Datetime model.Timestamp `json:"datetime"`
		Measure  float64         `json:"measure"`
	}{Datetime: at, Measure: measure}
	return c.do(ctx, http.MethodPost, cyclePath("/measurements", watchID, cycle), "/measurements/{watchId}/{cycle}", body, nil)
}

// DeleteMeasurement deletes the measurement with the given id.
func (c *Client) DeleteMeasurement(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/measurements/"+url.PathEscape(id.String()), "/measurements/{id}", nil, nil)
}

// Stats fetches the aggregates of one cycle.
func (c *Client) Stats(ctx context.Context, watchID model.ID, cycle int) (model.Stats, error) {
	var out model.Stats
	if err := c.do(ctx, http.MethodGet, cyclePath("/stats", watchID, cycle), "/stats/{watchId}/{cycle}", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = model.Stats{}
	}
	return out, nil
}

func cyclePath(prefix string, watchID model.ID, cycle int) string {
	return prefix + "/" + url.PathEscape(watchID.String()) + "/" + strconv.Itoa(cycle)
}

// do performs one request. route is the path template used for metrics.
// A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path, route string, in, out any) error {
	start := time.Now()
	reqID := c.newID()
	status := "error"
	defer func() {
		metrics.RecordBackendRequest(route, method, status, float64(time.Since(start).Microseconds())/1000)
	}()

	fail := func(code int, msg string, err error) error {
		metrics.RecordErrorByComponent("client", errorType(err))
		return &TransportError{Method: method, Path: path, StatusCode: code, RequestID: reqID, Message: msg, Err: err}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fail(0, "", fmt.Errorf("encoding request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fail(0, "", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fail(0, "", fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err()))
		}
		return fail(0, "", fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := errorMessage(errBody)
		c.logger.Debug(ctx, "backend returned error",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("request_id", reqID),
			logger.String("message", msg),
		)
		return fail(resp.StatusCode, msg, sentinel)
	}

	c.logger.Debug(ctx, "request succeeded",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took_ms", time.Since(start)),
	)

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("%w: %w", ErrDecode, err))
	}
	return nil
}

func errorType(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "request"
	}
}
