package tui

import (
	"context"

	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/domain/model"
)

// Actions are the session operations the UI triggers.
type Actions interface {
	SelectWatch(ctx context.Context, w model.Watch) error
	SelectCycle(ctx context.Context, n int) error
	Refresh(ctx context.Context) error
	CreateWatch(ctx context.Context, name string) (model.Watch, error)
	DeleteWatch(ctx context.Context, w model.Watch) error
	CreateCycle(ctx context.Context) (int, error)
	CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, value string) error
	DeleteMeasurement(ctx context.Context, id, watchID model.ID, cycle int) error
}

// SessionActions adapts a session and its mutation pipeline to Actions.
type SessionActions struct {
	*service.Session
}

func (a SessionActions) CreateWatch(ctx context.Context, name string) (model.Watch, error) {
	return a.Pipeline().CreateWatch(ctx, name)
}

func (a SessionActions) DeleteWatch(ctx context.Context, w model.Watch) error {
	return a.Pipeline().DeleteWatch(ctx, w)
}

func (a SessionActions) CreateCycle(ctx context.Context) (int, error) {
	return a.Pipeline().CreateCycle(ctx)
}

func (a SessionActions) CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, value string) error {
	return a.Pipeline().CreateMeasurement(ctx, watchID, cycle, at, value)
}

func (a SessionActions) DeleteMeasurement(ctx context.Context, id, watchID model.ID, cycle int) error {
	return a.Pipeline().DeleteMeasurement(ctx, id, watchID, cycle)
}
