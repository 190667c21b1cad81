package worker

import "errors"

// Sentinel errors for the loop.
var (
	ErrStopped   = errors.New("loop stopped")
	ErrQueueFull = errors.New("loop queue full")
)
