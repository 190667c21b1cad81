package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/domain/model"
)

const actionTimeout = 30 * time.Second

type mode int

const (
	modeBrowse mode = iota
	modeInput
	modeConfirm
)

// resultMsg reports the outcome of an action.
type resultMsg struct {
	op  string
	err error
}

// reportMsg carries a failed background read.
type reportMsg struct {
	report service.Report
}

// Model is the root Bubble Tea model.
type Model struct {
	actions Actions
	reports <-chan service.Report

	state  State
	focus  Pane
	cursor [paneCount]int

	mode     mode
	prompt   string
	input    string
	onSubmit func(string) tea.Cmd

	status    string
	statusErr bool
	width     int
	height    int
}

// Option configures a Model.
type Option func(*Model)

// WithReports shows failed background reads from ch in the status line.
func WithReports(ch <-chan service.Report) Option {
	return func(m *Model) {
		m.reports = ch
	}
}

// New creates a model driving actions.
func New(actions Actions, opts ...Option) *Model {
	m := &Model{actions: actions, status: "Loading watches..."}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the state currently rendered.
func (m *Model) State() State { return m.state }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.listenReports()
}

func (m *Model) listenReports() tea.Cmd {
	if m.reports == nil {
		return nil
	}
	ch := m.reports
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return reportMsg{report: r}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
	case stateMsg:
		m.apply(v.state)
	case resultMsg:
		if v.err != nil {
			m.setError(fmt.Sprintf("%s failed: %v", v.op, v.err))
		} else {
			m.setStatus(v.op + " done")
		}
	case reportMsg:
		m.setError(fmt.Sprintf("loading %s failed: %v", v.report.View, v.report.Err))
		return m, m.listenReports()
	case tea.KeyMsg:
		return m, m.key(v)
	}
	return m, nil
}

// apply installs a new state and moves the cursors onto the selection.
func (m *Model) apply(st State) {
	prev := m.state
	m.state = st
	if i := st.selectedWatchIndex(); i >= 0 && (prev.Selection.Watch == nil || prev.Selection.WatchID() != st.Selection.WatchID()) {
		m.cursor[PaneWatches] = i
	}
	if i := st.selectedCycleIndex(); i >= 0 && prev.Selection.Cycle != st.Selection.Cycle {
		m.cursor[PaneCycles] = i
	}
	for p := Pane(0); p < paneCount; p++ {
		m.cursor[p] = clamp(m.cursor[p], st.length(p))
	}
	if m.status == "Loading watches..." && st.Watches.Status == service.StatusLoaded {
		m.setStatus("Ready")
	}
}

func (m *Model) key(k tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case modeInput:
		return m.inputKey(k)
	case modeConfirm:
		return m.confirmKey(k)
	}

	switch k.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "tab", "right", "l":
		m.focus = (m.focus + 1) % paneCount
	case "shift+tab", "left", "h":
		m.focus = (m.focus + paneCount - 1) % paneCount
	case "up", "k":
		m.cursor[m.focus] = clamp(m.cursor[m.focus]-1, m.state.length(m.focus))
	case "down", "j":
		m.cursor[m.focus] = clamp(m.cursor[m.focus]+1, m.state.length(m.focus))
	case "enter", " ":
		return m.activate()
	case "r":
		return m.run("refresh", func(ctx context.Context) error { return m.actions.Refresh(ctx) })
	case "a":
		m.ask("New watch name: ", func(name string) tea.Cmd {
			return m.run("add watch", func(ctx context.Context) error {
				_, err := m.actions.CreateWatch(ctx, name)
				return err
			})
		})
	case "n":
		if m.state.Selection.Watch == nil {
			m.setError("select a watch first")
			return nil
		}
		return m.run("new cycle", func(ctx context.Context) error {
			_, err := m.actions.CreateCycle(ctx)
			return err
		})
	case "m":
		sel := m.state.Selection
		if sel.Watch == nil || !sel.Cycle.Valid {
			m.setError("select a watch first")
			return nil
		}
		id, cycle := sel.Watch.ID, sel.Cycle.Value
		m.ask(fmt.Sprintf("Measure for %s cycle %d [s]: ", sel.Watch.Name, cycle), func(value string) tea.Cmd {
			return m.run("add measure", func(ctx context.Context) error {
				return m.actions.CreateMeasurement(ctx, id, cycle, model.Timestamp{}, value)
			})
		})
	case "d", "delete":
		return m.remove()
	}
	return nil
}

// activate selects the watch or cycle under the cursor.
func (m *Model) activate() tea.Cmd {
	i := m.cursor[m.focus]
	switch m.focus {
	case PaneWatches:
		if i >= len(m.state.Watches.Data) {
			return nil
		}
		w := m.state.Watches.Data[i]
		return m.run("select watch", func(ctx context.Context) error { return m.actions.SelectWatch(ctx, w) })
	case PaneCycles:
		if i >= len(m.state.Cycles.Data) {
			return nil
		}
		c := m.state.Cycles.Data[i]
		return m.run("select cycle", func(ctx context.Context) error { return m.actions.SelectCycle(ctx, c) })
	}
	return nil
}

// remove asks to delete the watch or measurement under the cursor.
func (m *Model) remove() tea.Cmd {
	i := m.cursor[m.focus]
	switch m.focus {
	case PaneWatches:
		if i >= len(m.state.Watches.Data) {
			return nil
		}
		w := m.state.Watches.Data[i]
		m.confirm(fmt.Sprintf("Delete watch '%s' and all its measurements? [y/n]", w.Name), func(string) tea.Cmd {
			return m.run("delete watch", func(ctx context.Context) error { return m.actions.DeleteWatch(ctx, w) })
		})
	case PaneLogs:
		sel := m.state.Selection
		if i >= len(m.state.Logs.Data) || sel.Watch == nil || !sel.Cycle.Valid {
			return nil
		}
		entry := m.state.Logs.Data[i]
		id, cycle := sel.Watch.ID, sel.Cycle.Value
		m.confirm(fmt.Sprintf("Delete log %s? [y/n]", entry.ID), func(string) tea.Cmd {
			return m.run("delete log", func(ctx context.Context) error {
				return m.actions.DeleteMeasurement(ctx, entry.ID, id, cycle)
			})
		})
	}
	return nil
}

func (m *Model) ask(prompt string, onSubmit func(string) tea.Cmd) {
	m.mode, m.prompt, m.input, m.onSubmit = modeInput, prompt, "", onSubmit
}

func (m *Model) confirm(prompt string, onYes func(string) tea.Cmd) {
	m.mode, m.prompt, m.input, m.onSubmit = modeConfirm, prompt, "", onYes
}

func (m *Model) inputKey(k tea.KeyMsg) tea.Cmd {
	switch k.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = modeBrowse
		m.setStatus("Cancelled")
	case tea.KeyEnter:
		m.mode = modeBrowse
		return m.onSubmit(strings.TrimSpace(m.input))
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(k.Runes)
	}
	return nil
}

func (m *Model) confirmKey(k tea.KeyMsg) tea.Cmd {
	m.mode = modeBrowse
	if s := k.String(); s == "y" || s == "Y" {
		return m.onSubmit("")
	}
	m.setStatus("Cancelled")
	return nil
}

// run performs fn off the Bubble Tea goroutine and reports the outcome.
func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.setStatus(op + "...")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return resultMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.status, m.statusErr = s, true
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
