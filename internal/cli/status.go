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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick pipeline overview",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *config.Config, s *store.Store) error {
		st, err := s.Stats()
		if err != nil {
			return err
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Bucket", "Items"})
		tw.AppendRows([]table.Row{
			{"pending", st.Pending},
			{"queued", st.Queued},
			{"in progress", st.InProgress},
			{"building", st.Building},
			{"in review", st.InReview},
			{"completed", st.Completed},
			{"failed", st.Failed},
			{"blocked", st.Blocked},
		})
		tw.Render()

		var stuck []store.Item
		for _, status := range []store.Status{store.StatusBlocked, store.StatusFailed} {
			status := status
			items, err := s.ListItems(store.ListFilter{Status: &status})
			if err != nil {
				return err
			}
			stuck = append(stuck, items...)
		}
		if len(stuck) > 0 {
			fmt.Printf("\n%sNeeds attention:%s\n", colorRed+colorBold, colorReset)
			for _, it := range stuck {
				fmt.Printf("  %s#%d%s %-8s %s\n", colorYellow, it.ID, colorReset, it.Status, short(lastEntry(it.Error), 90))
			}
			fmt.Printf("\n%sReset with: ideaflow reset <id>%s\n", colorDim, colorReset)
		}
		return nil
	})
}

// lastEntry returns the first line of the newest entry in an error history.
func lastEntry(history string) string {
	entries := strings.Split(strings.TrimSpace(history), "\n\n")
	return firstLine(entries[len(entries)-1])
}
