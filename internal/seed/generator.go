package seed

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/watchlog/internal/domain/model"
)

// Drift bounds in seconds per day. Mechanical watches typically run within these.
const (
	minDriftPerDay = -6.0
	maxDriftPerDay = 12.0
	maxJitter      = 0.8
	cycleGap       = 3 * 24 * time.Hour
)

// reading is one generated measurement, not yet bound to a backend watch id.
type reading struct {
	watch   int
	cycle   int
	at      model.Timestamp
	measure float64
}

// watchName returns a unique name so repeated runs never collide.
func watchName(prefix string, i int) string {
	return prefix + "-" + uuid.NewString()[:8] + "-" + strconv.Itoa(i+1)
}

// generate builds PerCycle daily readings for every cycle of every watch.
// Each watch drifts at its own rate; each cycle starts near zero as if the
// watch had just been set.
func generate(cfg Config, rng *rand.Rand) []reading {
	start := cfg.Start
	if start.IsZero() {
		start = time.Now().UTC().Add(-time.Duration(cfg.PerCycle*cfg.Cycles) * 24 * time.Hour)
	}

	out := make([]reading, 0, cfg.Watches*cfg.Cycles*cfg.PerCycle)
	for w := 0; w < cfg.Watches; w++ {
		drift := minDriftPerDay + rng.Float64()*(maxDriftPerDay-minDriftPerDay)
		at := start
		for c := 0; c < cfg.Cycles; c++ {
			offset := jitter(rng)
			for i := 0; i < cfg.PerCycle; i++ {
				out = append(out, reading{
					watch:   w,
					cycle:   c,
					at:      model.NewTimestamp(at),
					measure: round1(offset + drift*float64(i) + jitter(rng)),
				})
				at = at.Add(24*time.Hour + time.Duration(rng.IntN(3600))*time.Second)
			}
			at = at.Add(cycleGap)
		}
	}
	return out
}

func jitter(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * maxJitter
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
