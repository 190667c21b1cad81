package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrWatchNotFound  = errors.New("watch not found")
	ErrDuplicateWatch = errors.New("watch already exists")
	ErrEmptyName      = errors.New("watch name must not be empty")
	ErrNegativeCycle  = errors.New("cycle must not be negative")
)
