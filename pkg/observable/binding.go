package observable

import "sync"

// Source is the subscription side of a cell, independent of its value type.
type Source interface {
	Subscribe(o Observer) (unsubscribe func())
}

// Binding ties one rendering context to a set of cells. Mount subscribes
// onChange to every cell and Unmount removes those subscriptions. Both calls
// are idempotent so each mount is paired with exactly one unmount.
type Binding struct {
	mu       sync.Mutex
	sources  []Source
	observer Observer
	disposes []func()
}

// Bind creates an unmounted binding that calls onChange when any source changes.
func Bind(onChange func(), sources ...Source) *Binding {
	return &Binding{
		sources:  sources,
		observer: Func(onChange),
	}
}

// Mount subscribes the binding to its sources.
func (b *Binding) Mount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposes != nil {
		return
	}
	b.disposes = make([]func(), 0, len(b.sources))
	for _, s := range b.sources {
		b.disposes = append(b.disposes, s.Subscribe(b.observer))
	}
}

// Unmount removes every subscription made by Mount.
func (b *Binding) Unmount() {
	b.mu.Lock()
	disposes := b.disposes
	b.disposes = nil
	b.mu.Unlock()

	for _, dispose := range disposes {
		dispose()
	}
}

// Mounted reports whether the binding currently holds subscriptions.
func (b *Binding) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposes != nil
}
