package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	service "github.com/okian/watchlog/internal/app"
)

// Run shows the UI for s until the user quits or ctx is done. reports may be
// nil; otherwise failed background reads are shown in the status line.
func Run(ctx context.Context, s *service.Session, reports <-chan service.Report) error {
	m := New(SessionActions{Session: s}, WithReports(reports))
	p := tea.NewProgram(m, tea.WithAltScreen())

	bridge := NewBridge(s, p.Send)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	defer bridge.Stop()

	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
