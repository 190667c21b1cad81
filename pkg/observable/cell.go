// Package observable provides a framework-agnostic observable value cell.
//
// A Cell holds one value. Writing a value that is identical to the current one
// is a no-op; any other write stores the value and then notifies every
// subscribed observer synchronously, in subscription order. Observers receive
// no arguments and re-read the cell.
package observable

import "sync"

// Observer is notified after a cell's value changes.
type Observer interface {
	Notify()
}

type funcObserver struct {
	fn func()
}

func (f *funcObserver) Notify() { f.fn() }

// Func adapts fn to an Observer. Every call returns a distinct observer, so
// subscribing the result of two Func calls registers two subscriptions.
func Func(fn func()) Observer {
	return &funcObserver{fn: fn}
}

// Cell is a readable, writable, observable value.
type Cell[T comparable] struct {
	mu        sync.RWMutex
	value     T
	observers []Observer
}

// New creates a cell holding initial.
func New[T comparable](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Read returns the current value.
func (c *Cell[T]) Read() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Write stores v and notifies observers unless v is identical to the current value.
func (c *Cell[T]) Write(v T) {
	c.mu.Lock()
	if c.value == v {
		c.mu.Unlock()
		return
	}
	c.value = v
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o.Notify()
	}
}

// Subscribe registers o and returns a function that removes it again.
// Subscribing an already registered observer does not add a second entry.
func (c *Cell[T]) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	if c.indexOf(o) < 0 {
		c.observers = append(c.observers, o)
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.Unsubscribe(o) })
	}
}

// Unsubscribe removes o. Removing an observer that is not registered is a no-op.
func (c *Cell[T]) Unsubscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(o)
	if i < 0 {
		return
	}
	c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
}

// Observers returns the number of registered observers.
func (c *Cell[T]) Observers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.observers)
}

func (c *Cell[T]) indexOf(o Observer) int {
	for i, existing := range c.observers {
		if existing == o {
			return i
		}
	}
	return -1
}
