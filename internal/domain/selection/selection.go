// Package selection owns the operator's watch and cycle choice.
//
// The controller is the single writer of two observable cells. Selecting a
// watch always assigns its default cycle in the same call, so observers never
// see a cycle without a watch once the call returns.
package selection

import (
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/observable"
)

// Controller holds the current selection.
type Controller struct {
	watch *observable.Cell[*model.Watch]
	cycle *observable.Cell[model.CycleRef]
}

// New creates a controller with nothing selected.
func New() *Controller {
	return &Controller{
		watch: observable.New[*model.Watch](nil),
		cycle: observable.New(model.NoCycle),
	}
}

// WatchCell exposes the selected watch for observation.
func (c *Controller) WatchCell() *observable.Cell[*model.Watch] { return c.watch }

// CycleCell exposes the selected cycle for observation.
func (c *Controller) CycleCell() *observable.Cell[model.CycleRef] { return c.cycle }

// Current returns a snapshot of the selection.
func (c *Controller) Current() model.Selection {
	return model.Selection{Watch: c.watch.Read(), Cycle: c.cycle.Read()}
}

// SelectWatch selects w and its default cycle. Selecting nil clears the selection.
func (c *Controller) SelectWatch(w *model.Watch) {
	if w == nil {
		c.ClearSelection()
		return
	}
	c.watch.Write(w)
	c.cycle.Write(model.Cycle(model.DefaultCycle(w.Cycles)))
}

// SelectCycle selects cycle n of the current watch.
func (c *Controller) SelectCycle(n int) error {
	if c.watch.Read() == nil {
		return ErrNoWatch
	}
	if n < 0 {
		return ErrNegativeCycle
	}
	c.cycle.Write(model.Cycle(n))
	return nil
}

// CreateCycleForCurrentWatch appends the next cycle number to the selected
// watch's cycles and selects it. The change is local to this process.
func (c *Controller) CreateCycleForCurrentWatch() (int, error) {
	w := c.watch.Read()
	if w == nil {
		return 0, ErrNoWatch
	}
	next := model.NextCycle(w.Cycles)
	w.Cycles = append(w.Cycles, next)
	c.cycle.Write(model.Cycle(next))
	return next, nil
}

// ClearSelection resets both watch and cycle to none.
func (c *Controller) ClearSelection() {
	c.watch.Write(nil)
	c.cycle.Write(model.NoCycle)
}

// Rebind points the watch cell at a refreshed copy of the selected watch.
// It does nothing unless w has the selected watch's id; the cycle is kept.
func (c *Controller) Rebind(w *model.Watch) bool {
	current := c.watch.Read()
	if current == nil || w == nil || current.ID != w.ID {
		return false
	}
	c.watch.Write(w)
	return true
}
