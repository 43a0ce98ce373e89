package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/store"
)

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ideas",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show an idea with its output and error history",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status (unset, queued_software, failed, ...)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "max rows")
}

func runList(cmd *cobra.Command, args []string) error {
	f := store.ListFilter{Limit: listLimit}
	if listStatus != "" {
		st, ok := store.ParseStatus(listStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", listStatus)
		}
		f.Status = &st
	}

	return withStore(func(_ *config.Config, s *store.Store) error {
		items, err := s.ListItems(f)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Printf("No ideas. Run: %sideaflow capture \"your idea\"%s\n", colorCyan, colorReset)
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Status", "Stage", "Priority", "Agent", "Title"})
		for _, it := range items {
			tw.AppendRow(table.Row{
				it.ID,
				statusColor(it.Status) + it.Status.String() + colorReset,
				it.Stage,
				it.Priority,
				it.SuggestedAgent,
				short(it.Title(), 60),
			})
		}
		tw.Render()
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s *store.Store) error {
		it, err := s.GetItem(id)
		if err != nil {
			return err
		}

		fmt.Printf("%s#%d %s%s\n", colorBold, it.ID, it.Title(), colorReset)
		fmt.Printf("  %-12s %s%s%s\n", "status:", statusColor(it.Status), it.Status, colorReset)
		fmt.Printf("  %-12s %s\n", "stage:", it.Stage)
		fmt.Printf("  %-12s %s\n", "priority:", it.Priority)
		if it.SuggestedAgent != "" {
			fmt.Printf("  %-12s %s\n", "agent:", it.SuggestedAgent)
		}
		if it.ExecutedBy != "" {
			fmt.Printf("  %-12s %s at %s\n", "last run:", it.ExecutedBy, it.ExecutedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("\n%s\n", it.Text)

		if strings.TrimSpace(it.Error) != "" {
			fmt.Printf("\n%sErrors:%s\n%s\n", colorRed+colorBold, colorReset, it.Error)
		}
		if strings.TrimSpace(it.Output) != "" {
			fmt.Printf("\n%sOutput:%s\n%s\n", colorBold, colorReset, it.Output)
		}
		return nil
	})
}
