// Package seed fills a backend with generated watches and measurements and
// checks that they read back intact. It is used for demos and load tests.
package seed

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Run for unusable settings.
var ErrInvalidConfig = errors.New("invalid seed config")

// Default generation settings.
const (
	DefaultWatches  = 5
	DefaultCycles   = 2
	DefaultPerCycle = 14
	DefaultWorkers  = 4
	DefaultPrefix   = "seed"
)

// Config holds configuration for one seeding run.
type Config struct {
	Watches  int       // Number of watches to create
	Cycles   int       // Cycles per watch
	PerCycle int       // Measurements per cycle
	Workers  int       // Concurrent submitters
	Prefix   string    // Watch name prefix
	Start    time.Time // First measurement time; zero means PerCycle days ago
	Verify   bool      // Read everything back after submission
}

// Result holds run statistics.
type Result struct {
	WatchesCreated        int
	MeasurementsGenerated int
	MeasurementsSubmitted int
	MeasurementsFailed    int
	CyclesVerified        int
	StartTime             time.Time
	EndTime               time.Time
	Duration              time.Duration
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Watches:  DefaultWatches,
		Cycles:   DefaultCycles,
		PerCycle: DefaultPerCycle,
		Workers:  DefaultWorkers,
		Prefix:   DefaultPrefix,
		Verify:   true,
	}
}

func (c Config) validate() error {
	switch {
	case c.Watches <= 0:
		return fmt.Errorf("%w: watches must be positive", ErrInvalidConfig)
	case c.Cycles <= 0:
		return fmt.Errorf("%w: cycles must be positive", ErrInvalidConfig)
	case c.PerCycle <= 0:
		return fmt.Errorf("%w: measurements per cycle must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	return nil
}
