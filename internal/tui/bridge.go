package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/pkg/observable"
)

// stateMsg delivers a new State to the model.
type stateMsg struct {
	state State
}

// Bridge binds the session's cells to a Bubble Tea program. Change
// notifications run on the event loop and capture a State there; a pump
// goroutine forwards only the latest one, so a slow terminal never blocks
// the loop.
type Bridge struct {
	session *service.Session
	binding *observable.Binding
	send    func(msg tea.Msg)

	mu     sync.Mutex
	latest *State
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewBridge creates an unmounted bridge delivering states through send.
func NewBridge(s *service.Session, send func(msg tea.Msg)) *Bridge {
	b := &Bridge{
		session: s,
		send:    send,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	sel := s.Selection()
	b.binding = observable.Bind(b.changed,
		sel.WatchCell(),
		sel.CycleCell(),
		s.Watches().Cell(),
		s.Cycles().Cell(),
		s.Measurements().Cell(),
		s.Stats().Cell(),
	)
	return b
}

// Start mounts the binding, starts the pump and publishes the current state.
func (b *Bridge) Start(ctx context.Context) error {
	b.binding.Mount()
	go b.pump()
	return b.session.Do(ctx, func(context.Context) { b.changed() })
}

// Stop unmounts the binding and ends the pump.
func (b *Bridge) Stop() {
	b.binding.Unmount()
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) changed() {
	st := capture(b.session)
	b.mu.Lock()
	b.latest = &st
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
			b.mu.Lock()
			st := b.latest
			b.latest = nil
			b.mu.Unlock()
			if st != nil {
				b.send(stateMsg{state: *st})
			}
		}
	}
}
