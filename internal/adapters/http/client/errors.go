package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for failure classification.
// Use errors.Is(err, client.ErrNotFound) to check.
var (
	ErrBadRequest  = errors.New("backend: bad request")
	ErrNotFound    = errors.New("backend: not found")
	ErrConflict    = errors.New("backend: conflict")
	ErrServer      = errors.New("backend: server error")
	ErrUnavailable = errors.New("backend: unavailable")
	ErrDecode      = errors.New("backend: malformed response")
)

// TransportError describes a failed backend round trip. StatusCode is 0
// when no response was received.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel or underlying cause, for errors.Is()
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s %s", e.Method, e.Path)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request-id: %s)", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrBadRequest
	}
}

// errorMessage extracts a human readable message from an error body. Both
// {"message": ...} and {"detail": ...} shapes are understood.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(body))
}
