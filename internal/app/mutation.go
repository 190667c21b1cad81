package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
)

// Operation names used in logs, metrics and validation errors.
const (
	OpCreateWatch       = "create_watch"
	OpDeleteWatch       = "delete_watch"
	OpCreateCycle       = "create_cycle"
	OpCreateMeasurement = "create_measurement"
	OpDeleteMeasurement = "delete_measurement"
)

// Pipeline performs writes. Each backend call runs on the caller's goroutine;
// only after the backend confirms it are the affected keys advanced on the
// event loop. Failed writes are returned as is: nothing is retried and local
// changes already made stay in place.
type Pipeline struct {
	s *Session
}

// CreateWatch creates a watch named name and refreshes the watch list. The new
// watch is not selected.
func (p *Pipeline) CreateWatch(ctx context.Context, name string) (model.Watch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Watch{}, p.reject(ctx, &ValidationError{
			Op: OpCreateWatch, Field: "name", Value: name, Reason: "must not be empty",
		})
	}
	if err := p.s.running(); err != nil {
		return model.Watch{}, err
	}

	w, err := p.s.backend.CreateWatch(ctx, name)
	if err != nil {
		return model.Watch{}, p.fail(ctx, OpCreateWatch, err)
	}

	if err := p.s.loop.Call(ctx, func(context.Context) {
		p.s.refreshWatchList()
	}); err != nil {
		return w, err
	}
	p.succeed(ctx, OpCreateWatch, logger.String("watchID", w.ID.String()))
	return w, nil
}

// DeleteWatch deletes w. When w is the selected watch the selection is
// cleared in the same loop task that issues the watch-list refetch.
func (p *Pipeline) DeleteWatch(ctx context.Context, w model.Watch) error {
	if w.ID == "" {
		return p.reject(ctx, &ValidationError{
			Op: OpDeleteWatch, Field: "id", Value: "", Reason: "must not be empty",
		})
	}
	if err := p.s.running(); err != nil {
		return err
	}

	if err := p.s.backend.DeleteWatch(ctx, w.ID); err != nil {
		return p.fail(ctx, OpDeleteWatch, err)
	}

	if err := p.s.loop.Call(ctx, func(context.Context) {
		if p.s.selection.Current().WatchID() == w.ID {
			p.s.selection.ClearSelection()
			metrics.RecordSelectionChange("clear")
		}
		delete(p.s.localCycles, w.ID)
		p.s.refreshWatchList()
	}); err != nil {
		return err
	}
	p.succeed(ctx, OpDeleteWatch, logger.String("watchID", w.ID.String()))
	return nil
}

// CreateCycle adds the next cycle to the selected watch and selects it. Cycles
// exist only as measurement keys on the backend, so the new cycle is kept in
// the session until a measurement is logged against it.
func (p *Pipeline) CreateCycle(ctx context.Context) (int, error) {
	var (
		cycle int
		err   error
	)
	callErr := p.s.Do(ctx, func(ctx context.Context) {
		w := p.s.selection.Current().Watch
		cycle, err = p.s.selection.CreateCycleForCurrentWatch()
		if err != nil {
			return
		}
		p.s.localCycles[w.ID] = model.MergeCycles(p.s.localCycles[w.ID], []int{cycle})
		p.s.cycleVersions[w.ID]++
		p.s.reconcile(ctx)
	})
	if callErr != nil {
		return 0, callErr
	}
	if err != nil {
		metrics.RecordMutation(OpCreateCycle, "rejected")
		return 0, fmt.Errorf("%s: %w", OpCreateCycle, err)
	}
	p.succeed(ctx, OpCreateCycle, logger.Int("cycle", cycle))
	return cycle, nil
}

// CreateMeasurement logs value for (watchID, cycle) at at. A zero at means now.
func (p *Pipeline) CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, value string) error {
	if err := validateScope(OpCreateMeasurement, watchID, cycle); err != nil {
		return p.reject(ctx, err)
	}
	measure, err := parseMeasure(value)
	if err != nil {
		return p.reject(ctx, err)
	}
	if at.IsZero() {
		at = model.Now()
	}
	if err := p.s.running(); err != nil {
		return err
	}

	if err := p.s.backend.CreateMeasurement(ctx, watchID, cycle, at, measure); err != nil {
		return p.fail(ctx, OpCreateMeasurement, err)
	}
	if err := p.invalidate(ctx, watchID, cycle); err != nil {
		return err
	}
	p.succeed(ctx, OpCreateMeasurement,
		logger.String("watchID", watchID.String()),
		logger.Int("cycle", cycle),
		logger.Float64("measure", measure),
	)
	return nil
}

// DeleteMeasurement deletes the measurement id, which belongs to (watchID, cycle).
func (p *Pipeline) DeleteMeasurement(ctx context.Context, id, watchID model.ID, cycle int) error {
	if id == "" {
		return p.reject(ctx, &ValidationError{
			Op: OpDeleteMeasurement, Field: "id", Value: "", Reason: "must not be empty",
		})
	}
	if err := validateScope(OpDeleteMeasurement, watchID, cycle); err != nil {
		return p.reject(ctx, err)
	}
	if err := p.s.running(); err != nil {
		return err
	}

	if err := p.s.backend.DeleteMeasurement(ctx, id); err != nil {
		return p.fail(ctx, OpDeleteMeasurement, err)
	}
	if err := p.invalidate(ctx, watchID, cycle); err != nil {
		return err
	}
	p.succeed(ctx, OpDeleteMeasurement, logger.String("logID", id.String()))
	return nil
}

// invalidate advances the measurement version of (watchID, cycle). The
// measurement list and statistics are refetched once if that pair is shown.
func (p *Pipeline) invalidate(ctx context.Context, watchID model.ID, cycle int) error {
	return p.s.loop.Call(ctx, func(ctx context.Context) {
		p.s.logVersions[scope{watchID: watchID, cycle: cycle}]++
		p.s.reconcile(ctx)
	})
}

func (p *Pipeline) reject(ctx context.Context, err *ValidationError) error {
	metrics.RecordValidationRejected(err.Op)
	p.s.logger.Debug(ctx, "rejected input",
		logger.String("op", err.Op),
		logger.String("field", err.Field),
		logger.String("reason", err.Reason),
	)
	return err
}

func (p *Pipeline) fail(ctx context.Context, op string, err error) error {
	metrics.RecordMutation(op, "error")
	metrics.RecordErrorByComponent("pipeline", op)
	p.s.logger.Error(ctx, "mutation failed", logger.String("op", op), logger.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Pipeline) succeed(ctx context.Context, op string, fields ...logger.Field) {
	metrics.RecordMutation(op, "ok")
	p.s.logger.Info(ctx, "mutation confirmed", append([]logger.Field{logger.String("op", op)}, fields...)...)
}

func validateScope(op string, watchID model.ID, cycle int) *ValidationError {
	if watchID == "" {
		return &ValidationError{Op: op, Field: "watch", Value: "", Reason: "no watch selected"}
	}
	if cycle < 0 {
		return &ValidationError{Op: op, Field: "cycle", Value: strconv.Itoa(cycle), Reason: "must not be negative"}
	}
	return nil
}

func parseMeasure(value string) (float64, *ValidationError) {
	trimmed := strings.TrimSpace(value)
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, &ValidationError{Op: OpCreateMeasurement, Field: "measure", Value: value, Reason: "not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Op: OpCreateMeasurement, Field: "measure", Value: value, Reason: "must be finite"}
	}
	return f, nil
}
