package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Show event log for an idea",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s *store.Store) error {
		events, err := s.GetEvents(id)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Printf("No events for idea #%d\n", id)
			return nil
		}

		fmt.Printf("Events for idea #%d:\n\n", id)
		for _, e := range events {
			agent := ""
			if e.Agent != "" {
				agent = fmt.Sprintf("[%s] ", e.Agent)
			}
			fmt.Printf("  %s  %s%-12s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), agent, e.Type, firstLine(e.Content))
		}
		return nil
	})
}
