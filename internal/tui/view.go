package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/domain/model"
)

var (
	accent = lipgloss.Color("39")
	muted  = lipgloss.Color("241")
	danger = lipgloss.Color("203")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(danger)
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	chosenStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1)
	focusedStyle = paneStyle.Copy().BorderForeground(accent)
)

const (
	watchPaneWidth = 28
	cyclePaneWidth = 10
	logPaneWidth   = 48
	statsPaneWidth = 24
	helpText       = "tab: pane  ↑/↓: move  enter: select  a: add watch  n: new cycle  m: measure  d: delete  r: refresh  q: quit"
)

// View implements tea.Model.
func (m *Model) View() string {
	header := titleStyle.Render("watchlog") + "  " + mutedStyle.Render(m.selectionLabel())

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.pane(PaneWatches, "Watches", watchPaneWidth, m.watchRows(), m.state.Watches.Status),
		m.pane(PaneCycles, "Cycles", cyclePaneWidth, m.cycleRows(), m.state.Cycles.Status),
		m.pane(PaneLogs, "Measurements", logPaneWidth, m.logRows(), m.state.Logs.Status),
		m.statsPane(),
	)

	var footer string
	switch m.mode {
	case modeInput:
		footer = m.prompt + m.input + "█"
	case modeConfirm:
		footer = m.prompt
	default:
		footer = m.statusLine()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, footer, mutedStyle.Render(helpText))
}

func (m *Model) selectionLabel() string {
	sel := m.state.Selection
	if sel.Watch == nil {
		return "no watch selected"
	}
	if !sel.Cycle.Valid {
		return sel.Watch.Name
	}
	return fmt.Sprintf("%s / cycle %d", sel.Watch.Name, sel.Cycle.Value)
}

func (m *Model) statusLine() string {
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return m.status
}

// pane renders one list. The row under the cursor is reversed when the pane
// has focus; the selected row is highlighted.
func (m *Model) pane(p Pane, title string, width int, rows []row, status service.Status) string {
	style := paneStyle
	if m.focus == p {
		style = focusedStyle
	}
	lines := []string{titleStyle.Render(title) + statusBadge(status)}
	if len(rows) == 0 {
		lines = append(lines, mutedStyle.Render("none"))
	}
	for i, r := range rows {
		text := truncate(r.text, width)
		switch {
		case m.focus == p && i == m.cursor[p]:
			text = cursorStyle.Render(text)
		case r.chosen:
			text = chosenStyle.Render(text)
		}
		lines = append(lines, text)
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) statsPane() string {
	lines := []string{titleStyle.Render("Statistics") + statusBadge(m.state.Stats.Status)}
	stats := m.state.Stats.Data
	if len(stats) == 0 {
		lines = append(lines, mutedStyle.Render("none"))
	}
	for _, k := range stats.Keys() {
		lines = append(lines, fmt.Sprintf("%-10s %s", k, stats.Format(k)))
	}
	return paneStyle.Width(statsPaneWidth).Render(strings.Join(lines, "\n"))
}

type row struct {
	text   string
	chosen bool
}

func (m *Model) watchRows() []row {
	chosen := m.state.selectedWatchIndex()
	rows := make([]row, 0, len(m.state.Watches.Data))
	for i, w := range m.state.Watches.Data {
		rows = append(rows, row{text: w.Name, chosen: i == chosen})
	}
	return rows
}

func (m *Model) cycleRows() []row {
	chosen := m.state.selectedCycleIndex()
	rows := make([]row, 0, len(m.state.Cycles.Data))
	for i, c := range m.state.Cycles.Data {
		rows = append(rows, row{text: strconv.Itoa(c), chosen: i == chosen})
	}
	return rows
}

func (m *Model) logRows() []row {
	rows := make([]row, 0, len(m.state.Logs.Data))
	for _, l := range m.state.Logs.Data {
		rows = append(rows, row{text: formatLog(l)})
	}
	return rows
}

func formatLog(l model.Measurement) string {
	diff := "-"
	if l.Difference != nil {
		diff = strconv.FormatFloat(*l.Difference, 'f', 2, 64)
	}
	return fmt.Sprintf("%-4s %s %+6.1f %6s", l.ID, l.Datetime, l.Measure, diff)
}

func statusBadge(s service.Status) string {
	switch s {
	case service.StatusLoading:
		return mutedStyle.Render(" …")
	case service.StatusFailed:
		return errorStyle.Render(" !")
	}
	return ""
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
