// Package repository defines the watch log store interface and its implementations.
package repository

import (
	"context"
	"time"
)

// Watch is a stored watch. Cycles are derived from the cycles its logs use.
type Watch struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	Cycles    []int
}

// Log is one stored measurement.
type Log struct {
	ID      int64
	WatchID int64
	Cycle   int
	At      time.Time
	Measure float64
}

// Store provides read/write access to watches and their logs.
type Store interface {
	// ListWatches returns all watches ordered by id, each with its sorted cycles.
	ListWatches(ctx context.Context) ([]Watch, error)

	// CreateWatch stores a new watch. Returns ErrDuplicateWatch if the name is taken.
	CreateWatch(ctx context.Context, name string) (Watch, error)

	// DeleteWatch removes a watch and its logs. Returns ErrNotFound if the id is unknown.
	DeleteWatch(ctx context.Context, id int64) error

	// ListLogs returns the logs of one cycle ordered by time, then id.
	ListLogs(ctx context.Context, watchID int64, cycle int) ([]Log, error)

	// AddLog stores a measurement. Returns ErrWatchNotFound if the watch is unknown.
	AddLog(ctx context.Context, watchID int64, cycle int, at time.Time, measure float64) (Log, error)

	// DeleteLog removes a measurement. Returns ErrNotFound if the id is unknown.
	DeleteLog(ctx context.Context, id int64) error

	// Count returns the number of watches and logs stored.
	Count(ctx context.Context) (watches, logs int, err error)

	// Close releases resources held by the store.
	Close() error
}
