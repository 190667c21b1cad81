package selection

import "errors"

// Sentinel errors for selection changes.
var (
	ErrNoWatch       = errors.New("no watch selected")
	ErrNegativeCycle = errors.New("cycle must not be negative")
)
