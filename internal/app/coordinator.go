package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/watchlog/internal/adapters/mq/worker"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
	"github.com/okian/watchlog/pkg/observable"
)

// Status is the lifecycle state of a coordinator's snapshot.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is what a view renders. Data is kept across loading and failed
// states so the view never goes blank while a refetch is pending.
type Snapshot[K comparable, V any] struct {
	Key       K
	Data      V
	HasData   bool
	Status    Status
	Err       error
	UpdatedAt time.Time
}

// Submitter accepts completions for the event loop.
type Submitter interface {
	Submit(ctx context.Context, task worker.Task) error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorConfig)

type coordinatorConfig struct {
	reporter Reporter
	logger   logger.Logger
	tracker  *tracker
	ctx      context.Context
}

// WithCoordinatorReporter sets where failed reads are reported.
func WithCoordinatorReporter(r Reporter) CoordinatorOption {
	return func(c *coordinatorConfig) { c.reporter = r }
}

// WithCoordinatorLogger sets the coordinator's logger.
func WithCoordinatorLogger(l logger.Logger) CoordinatorOption {
	return func(c *coordinatorConfig) { c.logger = l }
}

// WithQueryContext sets the context queries run under. Canceling it aborts
// every in-flight query.
func WithQueryContext(ctx context.Context) CoordinatorOption {
	return func(c *coordinatorConfig) { c.ctx = ctx }
}

func withTracker(t *tracker) CoordinatorOption {
	return func(c *coordinatorConfig) { c.tracker = t }
}

// Coordinator keeps one view's data in sync with a key. Only the result of a
// query issued for the current key is ever applied; anything else is dropped.
//
// Fetch, Clear and Active must be called on the event loop. The snapshot cell
// can be read from anywhere.
type Coordinator[K comparable, V any] struct {
	view  string
	loop  Submitter
	cell  *observable.Cell[*Snapshot[K, V]]
	apply func(K, V) V

	// owned by the event loop
	active    K
	hasActive bool

	cfg coordinatorConfig
}

// NewCoordinator creates an idle coordinator for view.
func NewCoordinator[K comparable, V any](view string, loop Submitter, opts ...CoordinatorOption) *Coordinator[K, V] {
	cfg := coordinatorConfig{
		logger: logger.Get(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracker == nil {
		cfg.tracker = newTracker()
	}

	return &Coordinator[K, V]{
		view: view,
		loop: loop,
		cell: observable.New(&Snapshot[K, V]{}),
		cfg:  cfg,
	}
}

// OnApply installs fn to post-process successful results on the event loop
// before they are written. It must be set before the first Fetch.
func (c *Coordinator[K, V]) OnApply(fn func(K, V) V) *Coordinator[K, V] {
	c.apply = fn
	return c
}

// Cell exposes the snapshot for observation.
func (c *Coordinator[K, V]) Cell() *observable.Cell[*Snapshot[K, V]] { return c.cell }

// Snapshot returns the current snapshot.
func (c *Coordinator[K, V]) Snapshot() *Snapshot[K, V] { return c.cell.Read() }

// Active returns the current key and whether one is set.
func (c *Coordinator[K, V]) Active() (K, bool) { return c.active, c.hasActive }

// IsActive reports whether key is the current key.
func (c *Coordinator[K, V]) IsActive(key K) bool {
	return c.hasActive && c.active == key
}

// Wait blocks until every query issued so far has had its completion
// processed on the loop.
func (c *Coordinator[K, V]) Wait(ctx context.Context) error {
	return c.cfg.tracker.wait(ctx)
}

// Fetch makes key current and runs query for it on a new goroutine.
func (c *Coordinator[K, V]) Fetch(key K, query func(ctx context.Context) (V, error)) {
	c.active = key
	c.hasActive = true

	prev := c.cell.Read()
	c.cell.Write(&Snapshot[K, V]{
		Key:       key,
		Data:      prev.Data,
		HasData:   prev.HasData,
		Status:    StatusLoading,
		UpdatedAt: prev.UpdatedAt,
	})
	metrics.RecordFetchIssued(c.view)

	c.cfg.tracker.add()
	go func() {
		start := time.Now()
		v, err := query(c.cfg.ctx)
		metrics.RecordFetchLatency(c.view, float64(time.Since(start).Microseconds())/1000)

		err2 := c.loop.Submit(c.cfg.ctx, func(ctx context.Context) {
			defer c.cfg.tracker.done()
			c.complete(ctx, key, v, err)
		})
		if err2 != nil {
			c.cfg.tracker.done()
			c.cfg.logger.Debug(c.cfg.ctx, "completion not delivered",
				logger.String("view", c.view),
				logger.Error(err2),
			)
		}
	}()
}

// Clear forgets the current key and empties the snapshot. Results still in
// flight are dropped when they arrive.
func (c *Coordinator[K, V]) Clear() {
	if !c.hasActive && !c.cell.Read().HasData {
		return
	}
	var zero K
	c.active = zero
	c.hasActive = false
	c.cell.Write(&Snapshot[K, V]{})
}

func (c *Coordinator[K, V]) complete(ctx context.Context, key K, v V, err error) {
	if !c.IsActive(key) {
		metrics.RecordFetchSuperseded(c.view)
		c.cfg.logger.Debug(ctx, "dropping superseded result",
			logger.String("view", c.view),
			logger.Any("key", key),
		)
		return
	}

	prev := c.cell.Read()
	if err != nil {
		metrics.RecordFetchFailed(c.view)
		metrics.RecordErrorByComponent(c.view, "fetch")
		c.cfg.logger.Warn(ctx, "fetch failed",
			logger.String("view", c.view),
			logger.Any("key", key),
			logger.Error(err),
		)
		c.cell.Write(&Snapshot[K, V]{
			Key:       key,
			Data:      prev.Data,
			HasData:   prev.HasData,
			Status:    StatusFailed,
			Err:       err,
			UpdatedAt: prev.UpdatedAt,
		})
		if c.cfg.reporter != nil {
			c.cfg.reporter.Report(Report{View: c.view, Key: key, Err: err, At: time.Now()})
		}
		return
	}

	if c.apply != nil {
		v = c.apply(key, v)
	}
	metrics.RecordFetchApplied(c.view)
	c.cell.Write(&Snapshot[K, V]{
		Key:       key,
		Data:      v,
		HasData:   true,
		Status:    StatusLoaded,
		UpdatedAt: time.Now(),
	})
}

// tracker counts queries whose completion has not yet been processed.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func newTracker() *tracker {
	t := &tracker{idle: make(chan struct{})}
	close(t.idle)
	return t
}

func (t *tracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

func (t *tracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
