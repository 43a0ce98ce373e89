package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/store"
	"github.com/imkarma/ideaflow/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open interactive TUI board",
	Long:  "Opens a board of ideas grouped by pipeline lane, with a detail view of output and error history, capture, and reset of stuck items.",
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *config.Config, s *store.Store) error {
		p := tea.NewProgram(tui.New(s), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
}
