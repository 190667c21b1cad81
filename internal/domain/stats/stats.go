// Package stats computes per-cycle aggregates from a watch's readings.
//
// Readings are resampled onto a regular grid by linear interpolation before
// aggregation, so irregular logging intervals do not skew the average drift.
package stats

import (
	"math"
	"slices"
	"time"

	"github.com/okian/watchlog/internal/domain/model"
)

// Default configuration constants.
const (
	defaultStep            = 24 * time.Hour
	defaultMeasurePlaces   = 1
	defaultAggregatePlaces = 2
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithStep sets the resampling interval.
func WithStep(step time.Duration) Option {
	return func(c *Calculator) {
		if step > 0 {
			c.step = step
		}
	}
}

// Point is one reading.
type Point struct {
	At      time.Time
	Measure float64
}

// Calculator derives differences and aggregates from readings.
type Calculator struct {
	step time.Duration
}

// NewCalculator creates a calculator with daily resampling.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{step: defaultStep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Differences returns, for each point in time order, the change from the
// previous reading rounded to one decimal. The first entry is nil.
func Differences(points []Point) []*float64 {
	out := make([]*float64, len(points))
	for i := 1; i < len(points); i++ {
		d := round(points[i].Measure-points[i-1].Measure, defaultMeasurePlaces)
		out[i] = &d
	}
	return out
}

// Fill resamples points onto the calculator's grid, starting at the first
// reading and ending at or before the last one.
func (c *Calculator) Fill(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}
	sorted := sortPoints(points)
	start, end := sorted[0].At, sorted[len(sorted)-1].At

	var out []Point
	for t := start; !t.After(end); t = t.Add(c.step) {
		out = append(out, Point{At: t, Measure: round(interpolate(sorted, t), defaultMeasurePlaces)})
	}
	return out
}

// Compute returns average, deviation and delta of the consecutive
// differences of the resampled readings. With fewer than two resampled
// points, average and deviation are NaN and delta is 0.
func (c *Calculator) Compute(points []Point) model.Stats {
	filled := c.Fill(points)
	diffs := make([]float64, 0, len(filled))
	for _, d := range Differences(filled) {
		if d != nil {
			diffs = append(diffs, *d)
		}
	}
	if len(diffs) == 0 {
		return model.Stats{
			model.StatAverage:   math.NaN(),
			model.StatDeviation: math.NaN(),
			model.StatDelta:     0,
		}
	}

	var sum float64
	for _, d := range diffs {
		sum += d
	}
	avg := round(sum/float64(len(diffs)), defaultAggregatePlaces)

	var sq float64
	for _, d := range diffs {
		sq += (d - avg) * (d - avg)
	}
	dev := round(math.Sqrt(sq/float64(len(diffs))), defaultAggregatePlaces)
	delta := round(slices.Max(diffs)-slices.Min(diffs), defaultAggregatePlaces)

	return model.Stats{
		model.StatAverage:   avg,
		model.StatDeviation: dev,
		model.StatDelta:     delta,
	}
}

// FromMeasurements converts measurements to points.
func FromMeasurements(ms []model.Measurement) []Point {
	out := make([]Point, len(ms))
	for i, m := range ms {
		out[i] = Point{At: m.Datetime.Time, Measure: m.Measure}
	}
	return out
}

func sortPoints(points []Point) []Point {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b Point) int { return a.At.Compare(b.At) })
	return sorted
}

// interpolate evaluates the piecewise linear function through sorted at t.
// Readings sharing a timestamp resolve to the later one.
func interpolate(sorted []Point, t time.Time) float64 {
	i, _ := slices.BinarySearchFunc(sorted, t, func(p Point, t time.Time) int { return p.At.Compare(t) })
	for i+1 < len(sorted) && sorted[i+1].At.Equal(t) {
		i++
	}
	switch {
	case i >= len(sorted):
		return sorted[len(sorted)-1].Measure
	case sorted[i].At.Equal(t) || i == 0:
		return sorted[i].Measure
	}
	lo, hi := sorted[i-1], sorted[i]
	span := hi.At.Sub(lo.At).Seconds()
	frac := t.Sub(lo.At).Seconds() / span
	return lo.Measure + frac*(hi.Measure-lo.Measure)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}
