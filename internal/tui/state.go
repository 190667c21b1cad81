// Package tui is the interactive terminal front end. Views render immutable
// State values that are captured on the session's event loop whenever one of
// the bound cells changes.
package tui

import (
	"slices"

	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/domain/model"
)

// Pane is one of the three navigable lists.
type Pane int

const (
	PaneWatches Pane = iota
	PaneCycles
	PaneLogs
	paneCount
)

// View carries the data and load status of one coordinator.
type View[T any] struct {
	Data   T
	Status service.Status
	Err    error
}

// State is what the UI renders. It shares nothing mutable with the session.
type State struct {
	Watches   View[[]model.Watch]
	Cycles    View[[]int]
	Logs      View[[]model.Measurement]
	Stats     View[model.Stats]
	Selection model.Selection
}

// capture copies everything the UI shows. It must run on the event loop.
func capture(s *service.Session) State {
	st := State{
		Watches:   viewOf(s.Watches().Snapshot(), cloneWatches),
		Cycles:    viewOf(s.Cycles().Snapshot(), cloneSlice[int]),
		Logs:      viewOf(s.Measurements().Snapshot(), cloneSlice[model.Measurement]),
		Stats:     viewOf(s.Stats().Snapshot(), cloneStats),
		Selection: s.Selection().Current(),
	}
	if w := st.Selection.Watch; w != nil {
		c := *w
		c.Cycles = slices.Clone(w.Cycles)
		st.Selection.Watch = &c
	}
	return st
}

func viewOf[K comparable, V any](snap *service.Snapshot[K, V], clone func(V) V) View[V] {
	if snap == nil {
		return View[V]{}
	}
	return View[V]{Data: clone(snap.Data), Status: snap.Status, Err: snap.Err}
}

func cloneSlice[T any](s []T) []T { return slices.Clone(s) }

func cloneWatches(ws []model.Watch) []model.Watch {
	out := slices.Clone(ws)
	for i := range out {
		out[i].Cycles = slices.Clone(out[i].Cycles)
	}
	return out
}

func cloneStats(s model.Stats) model.Stats {
	if s == nil {
		return nil
	}
	out := make(model.Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// selectedWatchIndex returns the index of the selected watch in the list, or -1.
func (s State) selectedWatchIndex() int {
	if s.Selection.Watch == nil {
		return -1
	}
	return slices.IndexFunc(s.Watches.Data, func(w model.Watch) bool { return w.ID == s.Selection.Watch.ID })
}

// selectedCycleIndex returns the index of the selected cycle in the list, or -1.
func (s State) selectedCycleIndex() int {
	if !s.Selection.Cycle.Valid {
		return -1
	}
	return slices.Index(s.Cycles.Data, s.Selection.Cycle.Value)
}

// length returns the number of rows in pane p.
func (s State) length(p Pane) int {
	switch p {
	case PaneWatches:
		return len(s.Watches.Data)
	case PaneCycles:
		return len(s.Cycles.Data)
	case PaneLogs:
		return len(s.Logs.Data)
	}
	return 0
}
