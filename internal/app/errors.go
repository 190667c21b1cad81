package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/watchlog/pkg/metrics"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotStarted is returned by operations on a session that is not running.
	ErrNotStarted = errors.New("session not started")

	// ErrUnknownWatch is returned when a watch cannot be found in the loaded list.
	ErrUnknownWatch = errors.New("unknown watch")
)

// ValidationError describes input rejected before any backend call was made.
type ValidationError struct {
	Op     string
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s %q: %s", e.Op, e.Field, e.Value, e.Reason)
}

// Is reports ErrValidation as the error's sentinel.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Report carries a failed read to whoever displays errors. Views never see it
// directly; they keep showing the data they had.
type Report struct {
	View string
	Key  any
	Err  error
	At   time.Time
}

// Reporter receives failed reads.
type Reporter interface {
	Report(r Report)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(r Report)

// Report calls f(r).
func (f ReporterFunc) Report(r Report) { f(r) }

// ChannelReporter buffers reports on a channel. Reports that do not fit are
// dropped so the event loop never blocks on a slow reader.
type ChannelReporter struct {
	ch chan Report
}

// NewChannelReporter creates a reporter holding up to size pending reports.
func NewChannelReporter(size int) *ChannelReporter {
	if size <= 0 {
		size = 1
	}
	return &ChannelReporter{ch: make(chan Report, size)}
}

// Report enqueues r or drops it when the buffer is full.
func (c *ChannelReporter) Report(r Report) {
	select {
	case c.ch <- r:
	default:
		metrics.RecordReportDropped()
	}
}

// C returns the channel reports are delivered on.
func (c *ChannelReporter) C() <-chan Report { return c.ch }
