package service

import "github.com/okian/watchlog/pkg/logger"

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithQueueSize sets the event loop's queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithReporter sets where failed reads are reported.
func WithReporter(r Reporter) Option {
	return func(s *Session) {
		s.reporter = r
	}
}

// WithDefaultWatch selects the watch with this name once the first watch
// list arrives, unless something is already selected.
func WithDefaultWatch(name string) Option {
	return func(s *Session) {
		s.defaultWatch = name
	}
}
