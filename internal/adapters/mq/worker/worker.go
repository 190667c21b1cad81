// Package worker runs queued tasks on a single goroutine.
//
// The Loop is the process's event loop: every task it runs executes on the
// same goroutine, one at a time, in enqueue order. State owned by the loop
// therefore has exactly one writer and needs no further locking.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/watchlog/internal/adapters/mq/queue"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
)

// Task is a unit of work run on the loop.
type Task = queue.Task

// Queue defines how the loop receives and accepts tasks.
type Queue interface {
	Enqueue(ctx context.Context, t Task) bool
	EnqueueWait(ctx context.Context, t Task) bool
	Dequeue(ctx context.Context) <-chan Task
	Close() error
}

// Worker is a long-running task consumer.
type Worker interface {
	// Run starts the loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for the running task to finish.
	Shutdown(ctx context.Context) error
}

type loopKey struct{}

// InLoop reports whether ctx belongs to a task running on a loop.
func InLoop(ctx context.Context) bool {
	_, ok := ctx.Value(loopKey{}).(*Loop)
	return ok
}

// Loop implements Worker as a single-goroutine event loop.
type Loop struct {
	queue Queue
	name  string

	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  chan struct{}
	done      chan struct{}

	logger logger.Logger
}

// NewLoop creates a loop draining q.
func NewLoop(q Queue, opts ...Option) *Loop {
	l := &Loop{
		queue:    q,
		name:     "loop",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("loop"),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.name != "loop" {
		l.logger = l.logger.Named(l.name)
	}

	return l
}

// Start runs the loop on its own goroutine. Calling Start more than once has no effect.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.Run(ctx)
	})
}

// Run drains the queue until ctx is canceled, Shutdown is called or the queue closes.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	taskCtx := context.WithValue(ctx, loopKey{}, l)
	tasks := l.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			l.runTask(taskCtx, task)
		}
	}
}

func (l *Loop) runTask(ctx context.Context, task Task) {
	start := time.Now()
	defer func() {
		metrics.RecordLoopTaskLatency(float64(time.Since(start).Microseconds()) / 1000)
		if r := recover(); r != nil {
			metrics.RecordLoopTaskPanic()
			metrics.RecordErrorByComponent("loop", "panic")
			l.logger.Error(ctx, "task panicked", logger.Any("panic", r))
		}
	}()
	task(ctx)
}

// Post enqueues task without waiting for it to run.
func (l *Loop) Post(ctx context.Context, task Task) error {
	if l.stopped() {
		return ErrStopped
	}
	if !l.queue.Enqueue(ctx, task) {
		return ErrQueueFull
	}
	return nil
}

// Submit enqueues task, waiting for queue space but not for the task to run.
func (l *Loop) Submit(ctx context.Context, task Task) error {
	if l.stopped() {
		return ErrStopped
	}
	if !l.queue.EnqueueWait(ctx, task) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		return ErrStopped
	}
	return nil
}

// Call runs task on the loop and waits for it to return. Called from a task
// already running on the loop, it runs task inline.
func (l *Loop) Call(ctx context.Context, task Task) error {
	if InLoop(ctx) {
		task(ctx)
		return nil
	}

	finished := make(chan struct{})
	err := l.Submit(ctx, func(taskCtx context.Context) {
		defer close(finished)
		task(taskCtx)
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("call: %w", ctx.Err())
	}
}

// Sync waits until every task enqueued before it has run.
func (l *Loop) Sync(ctx context.Context) error {
	return l.Call(ctx, func(context.Context) {})
}

// Shutdown gracefully stops the loop.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.shutdown)
		if err := l.queue.Close(); err != nil {
			l.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	})

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) stopped() bool {
	select {
	case <-l.shutdown:
		return true
	case <-l.done:
		return true
	default:
		return false
	}
}

// IsStopped reports whether err means the loop is no longer accepting work.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}
