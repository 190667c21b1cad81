package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/watchlog/pkg/metrics"
)

// MemoryStore is an in-memory Store guarded by a single RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	watches map[int64]Watch
	logs    map[int64]Log
	nextID  struct{ watch, log int64 }
	opts    storeOptions
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		watches: make(map[int64]Watch),
		logs:    make(map[int64]Log),
		opts:    o,
	}
}

// ListWatches implements Store.
func (s *MemoryStore) ListWatches(ctx context.Context) ([]Watch, error) {
	defer observe("list_watches", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	cycles := make(map[int64][]int, len(s.watches))
	for _, l := range s.logs {
		cycles[l.WatchID] = append(cycles[l.WatchID], l.Cycle)
	}

	out := make([]Watch, 0, len(s.watches))
	for _, w := range s.watches {
		w.Cycles = sortedUnique(cycles[w.ID])
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b Watch) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateWatch implements Store.
func (s *MemoryStore) CreateWatch(ctx context.Context, name string) (Watch, error) {
	defer observe("create_watch", time.Now())
	name = strings.TrimSpace(name)
	if name == "" {
		return Watch{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.watches {
		if w.Name == name {
			return Watch{}, ErrDuplicateWatch
		}
	}
	s.nextID.watch++
	w := Watch{ID: s.nextID.watch, Name: name, CreatedAt: s.opts.now(), Cycles: []int{}}
	s.watches[w.ID] = w
	s.updateGauges()
	return w, nil
}

// DeleteWatch implements Store.
func (s *MemoryStore) DeleteWatch(ctx context.Context, id int64) error {
	defer observe("delete_watch", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watches[id]; !ok {
		return ErrNotFound
	}
	delete(s.watches, id)
	for logID, l := range s.logs {
		if l.WatchID == id {
			delete(s.logs, logID)
		}
	}
	s.updateGauges()
	return nil
}

// ListLogs implements Store.
func (s *MemoryStore) ListLogs(ctx context.Context, watchID int64, cycle int) ([]Log, error) {
	defer observe("list_logs", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Log{}
	for _, l := range s.logs {
		if l.WatchID == watchID && l.Cycle == cycle {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, compareLogs)
	return out, nil
}

// AddLog implements Store.
func (s *MemoryStore) AddLog(ctx context.Context, watchID int64, cycle int, at time.Time, measure float64) (Log, error) {
	defer observe("add_log", time.Now())
	if cycle < 0 {
		return Log{}, ErrNegativeCycle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watches[watchID]; !ok {
		return Log{}, ErrWatchNotFound
	}
	s.nextID.log++
	l := Log{ID: s.nextID.log, WatchID: watchID, Cycle: cycle, At: at.UTC().Truncate(time.Second), Measure: measure}
	s.logs[l.ID] = l
	s.updateGauges()
	return l, nil
}

// DeleteLog implements Store.
func (s *MemoryStore) DeleteLog(ctx context.Context, id int64) error {
	defer observe("delete_log", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[id]; !ok {
		return ErrNotFound
	}
	delete(s.logs, id)
	s.updateGauges()
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watches), len(s.logs), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// updateGauges must be called with the write lock held.
func (s *MemoryStore) updateGauges() {
	metrics.UpdateRepositoryWatches(len(s.watches))
	metrics.UpdateRepositoryMeasurements(len(s.logs))
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func compareLogs(a, b Log) int {
	if c := a.At.Compare(b.At); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sortedUnique(cycles []int) []int {
	out := slices.Clone(cycles)
	if out == nil {
		return []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
