package model

import "errors"

// Sentinel errors for model decoding.
var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
