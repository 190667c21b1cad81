package service

import (
	"context"

	"github.com/okian/watchlog/internal/domain/model"
)

// Backend is the remote store the session reads from and writes to.
// *client.Client satisfies it.
type Backend interface {
	ListWatches(ctx context.Context) ([]model.Watch, error)
	CreateWatch(ctx context.Context, name string) (model.Watch, error)
	DeleteWatch(ctx context.Context, id model.ID) error
	ListMeasurements(ctx context.Context, watchID model.ID, cycle int) ([]model.Measurement, error)
	CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, measure float64) error
	DeleteMeasurement(ctx context.Context, id model.ID) error
	Stats(ctx context.Context, watchID model.ID, cycle int) (model.Stats, error)
}

// WatchListKey identifies one generation of the watch list.
type WatchListKey struct {
	Version uint64
}

// CycleListKey identifies the cycles of one watch.
type CycleListKey struct {
	WatchID model.ID
	Version uint64
}

// MeasurementKey identifies the measurements of one (watch, cycle) pair.
type MeasurementKey struct {
	WatchID model.ID
	Cycle   int
	Version uint64
}

// StatsKey identifies the statistics of one (watch, cycle) pair. Version
// follows the measurement list it is computed from.
type StatsKey struct {
	WatchID model.ID
	Cycle   int
	Version uint64
}

type scope struct {
	watchID model.ID
	cycle   int
}
