// Package service is the client core: it owns the event loop, the operator's
// selection and the cached views of backend data.
package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/watchlog/internal/adapters/mq/queue"
	"github.com/okian/watchlog/internal/adapters/mq/worker"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/internal/domain/selection"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
	"github.com/okian/watchlog/pkg/observable"
)

// View names used in logs, metrics and reports.
const (
	ViewWatches      = "watches"
	ViewCycles       = "cycles"
	ViewMeasurements = "measurements"
	ViewStats        = "stats"
)

// Session wires the selection, the four fetch coordinators and the mutation
// pipeline to a single event loop.
type Session struct {
	backend      Backend
	logger       logger.Logger
	reporter     Reporter
	queueSize    int
	defaultWatch string

	mu      sync.Mutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc

	queue     *queue.InMemoryQueue
	loop      *worker.Loop
	selection *selection.Controller
	tracker   *tracker
	pipeline  *Pipeline

	watches      *Coordinator[WatchListKey, []model.Watch]
	cycles       *Coordinator[CycleListKey, []int]
	measurements *Coordinator[MeasurementKey, []model.Measurement]
	stats        *Coordinator[StatsKey, model.Stats]

	// owned by the event loop
	watchVersion     uint64
	cycleVersions    map[model.ID]uint64
	logVersions      map[scope]uint64
	localCycles      map[model.ID][]int
	reconcilePending bool
	defaultApplied   bool
	disposers        []func()
}

// New creates a session reading from and writing to backend.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:       backend,
		logger:        logger.Get(),
		queueSize:     1024,
		selection:     selection.New(),
		tracker:       newTracker(),
		cycleVersions: make(map[model.ID]uint64),
		logVersions:   make(map[scope]uint64),
		localCycles:   make(map[model.ID][]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.loop = worker.NewLoop(s.queue, worker.WithName("session"), worker.WithLogger(s.logger))

	copts := []CoordinatorOption{
		WithCoordinatorLogger(s.logger),
		WithCoordinatorReporter(s.reporter),
		WithQueryContext(s.ctx),
		withTracker(s.tracker),
	}
	s.watches = NewCoordinator[WatchListKey, []model.Watch](ViewWatches, s.loop, copts...).OnApply(s.mergeWatchList)
	s.cycles = NewCoordinator[CycleListKey, []int](ViewCycles, s.loop, copts...).OnApply(s.mergeCycleList)
	s.measurements = NewCoordinator[MeasurementKey, []model.Measurement](ViewMeasurements, s.loop, copts...)
	s.stats = NewCoordinator[StatsKey, model.Stats](ViewStats, s.loop, copts...)
	s.pipeline = &Pipeline{s: s}

	return s
}

// Start runs the event loop and loads the watch list.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info(ctx, "starting session...", logger.Int("queueSize", s.queueSize))
	metrics.UpdateQueueCapacity(s.queueSize)
	s.loop.Start(s.ctx)

	return s.loop.Call(ctx, func(context.Context) {
		onSelection := observable.Func(s.selectionChanged)
		s.disposers = append(s.disposers,
			s.selection.WatchCell().Subscribe(onSelection),
			s.selection.CycleCell().Subscribe(onSelection),
			s.watches.Cell().Subscribe(observable.Func(s.watchListChanged)),
		)
		s.refreshWatchList()
	})
}

// Stop unsubscribes the session's observers, aborts in-flight queries and
// stops the event loop.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping session...")

	if err := s.loop.Call(ctx, func(context.Context) {
		for _, dispose := range s.disposers {
			dispose()
		}
		s.disposers = nil
	}); err != nil {
		s.logger.Warn(ctx, "could not detach observers", logger.Error(err))
	}

	s.cancel()
	if err := s.loop.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}

	s.logger.Info(ctx, "session stopped")
	return nil
}

// Selection returns the selection controller. Its cells may be observed from
// anywhere but must only be written through the session.
func (s *Session) Selection() *selection.Controller { return s.selection }

// Watches returns the watch-list coordinator.
func (s *Session) Watches() *Coordinator[WatchListKey, []model.Watch] { return s.watches }

// Cycles returns the cycle-list coordinator.
func (s *Session) Cycles() *Coordinator[CycleListKey, []int] { return s.cycles }

// Measurements returns the measurement-list coordinator.
func (s *Session) Measurements() *Coordinator[MeasurementKey, []model.Measurement] {
	return s.measurements
}

// Stats returns the statistics coordinator.
func (s *Session) Stats() *Coordinator[StatsKey, model.Stats] { return s.stats }

// Pipeline returns the session's mutation pipeline.
func (s *Session) Pipeline() *Pipeline { return s.pipeline }

// Do runs fn on the event loop and waits for it. Everything owned by the
// session can be read consistently inside fn.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context)) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.loop.Call(ctx, fn)
}

// Current returns a copy of the selection taken on the event loop.
func (s *Session) Current(ctx context.Context) (model.Selection, error) {
	var sel model.Selection
	err := s.Do(ctx, func(context.Context) {
		sel = s.selection.Current()
		if sel.Watch != nil {
			sel.Watch = cloneWatch(sel.Watch)
		}
	})
	return sel, err
}

// SelectWatch selects w and its default cycle.
func (s *Session) SelectWatch(ctx context.Context, w model.Watch) error {
	return s.Do(ctx, func(context.Context) {
		s.selectWatch(&w)
	})
}

// SelectWatchByID selects the watch with id from the loaded watch list.
func (s *Session) SelectWatchByID(ctx context.Context, id model.ID) error {
	return s.selectWhere(ctx, func(w *model.Watch) bool { return w.ID == id }, id.String())
}

// SelectWatchByName selects the watch named name from the loaded watch list.
func (s *Session) SelectWatchByName(ctx context.Context, name string) error {
	return s.selectWhere(ctx, func(w *model.Watch) bool { return w.Name == name }, name)
}

func (s *Session) selectWhere(ctx context.Context, match func(*model.Watch) bool, label string) error {
	var err error
	callErr := s.Do(ctx, func(context.Context) {
		snap := s.watches.Snapshot()
		for i := range snap.Data {
			if match(&snap.Data[i]) {
				s.selectWatch(&snap.Data[i])
				return
			}
		}
		err = fmt.Errorf("%w: %s", ErrUnknownWatch, label)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// SelectCycle selects cycle n of the current watch.
func (s *Session) SelectCycle(ctx context.Context, n int) error {
	var err error
	callErr := s.Do(ctx, func(context.Context) {
		err = s.selection.SelectCycle(n)
		if err == nil {
			metrics.RecordSelectionChange("cycle")
		}
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// Refresh refetches the watch list and everything shown for the selection.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context) {
		s.refreshWatchList()
		sel := s.selection.Current()
		if sel.Watch != nil {
			s.cycleVersions[sel.Watch.ID]++
			if sel.Cycle.Valid {
				s.logVersions[scope{watchID: sel.Watch.ID, cycle: sel.Cycle.Value}]++
			}
		}
		s.reconcile(ctx)
	})
}

// Settle waits until no query is in flight and the event loop is idle.
func (s *Session) Settle(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	for {
		if err := s.loop.Sync(ctx); err != nil {
			return err
		}
		if s.tracker.pending() == 0 {
			return nil
		}
		if err := s.tracker.wait(ctx); err != nil {
			return err
		}
	}
}

func (s *Session) running() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return ErrNotStarted
	}
	return nil
}

func (s *Session) selectWatch(w *model.Watch) {
	s.selection.SelectWatch(cloneWatch(w))
	metrics.RecordSelectionChange("watch")
}

// selectionChanged runs on the loop for every selection write. The two writes
// of one selection change coalesce into a single reconcile.
func (s *Session) selectionChanged() {
	if s.reconcilePending {
		return
	}
	s.reconcilePending = true
	err := s.loop.Post(s.ctx, func(ctx context.Context) {
		s.reconcilePending = false
		s.reconcile(ctx)
	})
	if err == nil {
		return
	}
	s.reconcilePending = false
	if worker.IsStopped(err) {
		return
	}
	s.reconcile(s.ctx)
}

// reconcile points every selection-dependent coordinator at the key derived
// from the current selection and versions. Keys that did not change are not
// refetched.
func (s *Session) reconcile(context.Context) {
	sel := s.selection.Current()
	if sel.Watch == nil {
		s.cycles.Clear()
		s.measurements.Clear()
		s.stats.Clear()
		return
	}

	id := sel.Watch.ID
	ck := CycleListKey{WatchID: id, Version: s.cycleVersions[id]}
	if !s.cycles.IsActive(ck) {
		s.cycles.Fetch(ck, s.queryCycles(id))
	}

	if !sel.Cycle.Valid {
		s.measurements.Clear()
		s.stats.Clear()
		return
	}

	c := sel.Cycle.Value
	version := s.logVersions[scope{watchID: id, cycle: c}]
	mk := MeasurementKey{WatchID: id, Cycle: c, Version: version}
	if !s.measurements.IsActive(mk) {
		s.measurements.Fetch(mk, func(ctx context.Context) ([]model.Measurement, error) {
			return s.backend.ListMeasurements(ctx, id, c)
		})
	}
	sk := StatsKey{WatchID: id, Cycle: c, Version: version}
	if !s.stats.IsActive(sk) {
		s.stats.Fetch(sk, func(ctx context.Context) (model.Stats, error) {
			return s.backend.Stats(ctx, id, c)
		})
	}
}

func (s *Session) refreshWatchList() {
	s.watchVersion++
	s.watches.Fetch(WatchListKey{Version: s.watchVersion}, s.backend.ListWatches)
}

func (s *Session) queryCycles(id model.ID) func(ctx context.Context) ([]int, error) {
	return func(ctx context.Context) ([]int, error) {
		watches, err := s.backend.ListWatches(ctx)
		if err != nil {
			return nil, err
		}
		for _, w := range watches {
			if w.ID == id {
				return model.SortedCycles(w.Cycles), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownWatch, id)
	}
}

// watchListChanged keeps the selected watch pointing at the latest copy from
// the backend and applies the configured default selection once.
func (s *Session) watchListChanged() {
	snap := s.watches.Snapshot()
	if snap.Status != StatusLoaded {
		return
	}

	sel := s.selection.Current()
	if sel.Watch != nil {
		for i := range snap.Data {
			if snap.Data[i].ID == sel.Watch.ID {
				s.selection.Rebind(cloneWatch(&snap.Data[i]))
				return
			}
		}
		return
	}

	if s.defaultWatch == "" || s.defaultApplied {
		return
	}
	s.defaultApplied = true
	for i := range snap.Data {
		if snap.Data[i].Name == s.defaultWatch {
			s.selectWatch(&snap.Data[i])
			return
		}
	}
	s.logger.Warn(s.ctx, "default watch not found", logger.String("name", s.defaultWatch))
}

func (s *Session) mergeWatchList(_ WatchListKey, watches []model.Watch) []model.Watch {
	out := make([]model.Watch, len(watches))
	for i, w := range watches {
		w.Cycles = model.MergeCycles(w.Cycles, s.localCycles[w.ID])
		out[i] = w
	}
	return out
}

func (s *Session) mergeCycleList(key CycleListKey, cycles []int) []int {
	return model.MergeCycles(cycles, s.localCycles[key.WatchID])
}

func cloneWatch(w *model.Watch) *model.Watch {
	c := *w
	c.Cycles = slices.Clone(w.Cycles)
	return &c
}
