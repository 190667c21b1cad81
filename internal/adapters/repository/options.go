package repository

import (
	"time"

	"github.com/okian/watchlog/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*storeOptions)

type storeOptions struct {
	now    func() time.Time
	logger logger.Logger
}

func defaultOptions() storeOptions {
	return storeOptions{
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Get().Named("repository"),
	}
}

// WithClock overrides the clock used for watch creation times.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
