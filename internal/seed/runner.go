package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
)

// ErrVerification is returned when data read back differs from what was submitted.
var ErrVerification = errors.New("seed verification failed")

// Backend is the subset of the backend API a seeding run needs.
type Backend interface {
	CreateWatch(ctx context.Context, name string) (model.Watch, error)
	CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, measure float64) error
	ListMeasurements(ctx context.Context, watchID model.ID, cycle int) ([]model.Measurement, error)
	Stats(ctx context.Context, watchID model.ID, cycle int) (model.Stats, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRand sets the random source, for reproducible runs.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// Runner seeds one backend.
type Runner struct {
	backend Backend
	logger  logger.Logger
	rng     *rand.Rand
}

// NewRunner creates a runner writing to backend.
func NewRunner(backend Backend, opts ...Option) *Runner {
	r := &Runner{
		backend: backend,
		logger:  logger.Get().Named("seed"),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run creates cfg.Watches watches, submits their readings concurrently and,
// when cfg.Verify is set, reads every cycle back.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	res := &Result{StartTime: time.Now()}
	defer func() {
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(res.StartTime)
	}()

	watches := make([]model.Watch, 0, cfg.Watches)
	for i := 0; i < cfg.Watches; i++ {
		w, err := r.backend.CreateWatch(ctx, watchName(cfg.Prefix, i))
		if err != nil {
			return res, fmt.Errorf("create watch: %w", err)
		}
		watches = append(watches, w)
	}
	res.WatchesCreated = len(watches)
	r.logger.Info(ctx, "watches created", logger.Int("count", len(watches)))

	readings := generate(cfg, r.rng)
	res.MeasurementsGenerated = len(readings)

	submitted, failed := r.submit(ctx, cfg.Workers, watches, readings)
	res.MeasurementsSubmitted = submitted
	res.MeasurementsFailed = failed
	r.logger.Info(ctx, "measurement submission completed",
		logger.Int("submitted", submitted),
		logger.Int("failed", failed),
	)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if cfg.Verify {
		verified, err := r.verify(ctx, cfg, watches)
		res.CyclesVerified = verified
		if err != nil {
			return res, err
		}
	}

	r.logger.Info(ctx, "seeding finished",
		logger.Int("watches", res.WatchesCreated),
		logger.Int("measurements", res.MeasurementsSubmitted),
		logger.Int("cyclesVerified", res.CyclesVerified),
		logger.Duration("duration", time.Since(res.StartTime)),
	)
	return res, nil
}

// submit posts readings with a bounded number of concurrent requests. Failed
// submissions are counted and logged, not fatal.
func (r *Runner) submit(ctx context.Context, workers int, watches []model.Watch, readings []reading) (int, int) {
	var submitted, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rd := range readings {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			w := watches[rd.watch]
			if err := r.backend.CreateMeasurement(gctx, w.ID, rd.cycle, rd.at, rd.measure); err != nil {
				failed.Add(1)
				r.logger.Warn(gctx, "measurement submission failed",
					logger.String("watch", w.Name),
					logger.Int("cycle", rd.cycle),
					logger.Error(err),
				)
				return nil
			}
			submitted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(submitted.Load()), int(failed.Load())
}

// verify reads every seeded cycle back and checks its size and statistics.
func (r *Runner) verify(ctx context.Context, cfg Config, watches []model.Watch) (int, error) {
	verified := 0
	for _, w := range watches {
		for c := 0; c < cfg.Cycles; c++ {
			logs, err := r.backend.ListMeasurements(ctx, w.ID, c)
			if err != nil {
				return verified, fmt.Errorf("list measurements %s/%d: %w", w.ID, c, err)
			}
			if len(logs) != cfg.PerCycle {
				return verified, fmt.Errorf("%w: %s cycle %d has %d measurements, want %d",
					ErrVerification, w.Name, c, len(logs), cfg.PerCycle)
			}
			for i := 1; i < len(logs); i++ {
				if logs[i].Datetime.Before(logs[i-1].Datetime.Time) {
					return verified, fmt.Errorf("%w: %s cycle %d is not ordered by time", ErrVerification, w.Name, c)
				}
			}
			if _, err := r.backend.Stats(ctx, w.ID, c); err != nil {
				return verified, fmt.Errorf("stats %s/%d: %w", w.ID, c, err)
			}
			verified++
		}
	}
	return verified, nil
}
