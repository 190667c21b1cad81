package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

var errBackendDown = errors.New("backend down")

// fakeBackend is an in-memory Backend that counts calls and can hold or fail
// individual requests.
type fakeBackend struct {
	mu      sync.Mutex
	watches []model.Watch
	logs    map[string][]model.Measurement
	calls   map[string]int
	gates   map[string]chan struct{}
	fail    map[string]error
	nextID  int
}

func newFakeBackend(watches ...model.Watch) *fakeBackend {
	return &fakeBackend{
		watches: watches,
		logs:    make(map[string][]model.Measurement),
		calls:   make(map[string]int),
		gates:   make(map[string]chan struct{}),
		fail:    make(map[string]error),
		nextID:  100,
	}
}

func scopeOf(watchID model.ID, cycle int) string {
	return fmt.Sprintf("%s/%d", watchID, cycle)
}

// hold makes call block until the returned function is invoked.
func (f *fakeBackend) hold(call string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[call] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeBackend) failWith(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, call)
		return
	}
	f.fail[call] = err
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) enter(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls[call]++
	gate := f.gates[call]
	err := f.fail[call]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) ListWatches(ctx context.Context) ([]model.Watch, error) {
	if err := f.enter(ctx, "ListWatches"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Watch, len(f.watches))
	for i, w := range f.watches {
		w.Cycles = append([]int(nil), w.Cycles...)
		out[i] = w
	}
	return out, nil
}

func (f *fakeBackend) CreateWatch(ctx context.Context, name string) (model.Watch, error) {
	if err := f.enter(ctx, "CreateWatch"); err != nil {
		return model.Watch{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	w := model.Watch{ID: model.ID(fmt.Sprint(f.nextID)), Name: name}
	f.watches = append(f.watches, w)
	return w, nil
}

func (f *fakeBackend) DeleteWatch(ctx context.Context, id model.ID) error {
	if err := f.enter(ctx, "DeleteWatch"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.watches {
		if w.ID == id {
			f.watches = append(f.watches[:i], f.watches[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeBackend) ListMeasurements(ctx context.Context, watchID model.ID, cycle int) ([]model.Measurement, error) {
	if err := f.enter(ctx, "ListMeasurements:"+scopeOf(watchID, cycle)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Measurement(nil), f.logs[scopeOf(watchID, cycle)]...), nil
}

func (f *fakeBackend) CreateMeasurement(ctx context.Context, watchID model.ID, cycle int, at model.Timestamp, measure float64) error {
	if err := f.enter(ctx, "CreateMeasurement"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	key := scopeOf(watchID, cycle)
	f.logs[key] = append(f.logs[key], model.Measurement{
		ID:       model.ID(fmt.Sprint(f.nextID)),
		Datetime: at,
		Measure:  measure,
	})
	for i := range f.watches {
		if f.watches[i].ID == watchID {
			f.watches[i].Cycles = model.MergeCycles(f.watches[i].Cycles, []int{cycle})
		}
	}
	return nil
}

func (f *fakeBackend) DeleteMeasurement(ctx context.Context, id model.ID) error {
	if err := f.enter(ctx, "DeleteMeasurement"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, logs := range f.logs {
		for i, m := range logs {
			if m.ID == id {
				f.logs[key] = append(logs[:i], logs[i+1:]...)
				return nil
			}
		}
	}
	return errors.New("log not found")
}

// Stats reports the number of measurements as the average so tests can tell
// which backend state a result was computed from.
func (f *fakeBackend) Stats(ctx context.Context, watchID model.ID, cycle int) (model.Stats, error) {
	if err := f.enter(ctx, "Stats:"+scopeOf(watchID, cycle)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Stats{
		model.StatAverage:   float64(len(f.logs[scopeOf(watchID, cycle)])),
		model.StatDeviation: 0,
		model.StatDelta:     0,
	}, nil
}

func (f *fakeBackend) seed(watchID model.ID, cycle int, measures ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := scopeOf(watchID, cycle)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i, v := range measures {
		f.nextID++
		f.logs[key] = append(f.logs[key], model.Measurement{
			ID:       model.ID(fmt.Sprint(f.nextID)),
			Datetime: model.NewTimestamp(base.Add(time.Duration(i) * time.Hour)),
			Measure:  v,
		})
	}
}

// eventually polls cond until it holds or timeout passes.
func eventually(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
