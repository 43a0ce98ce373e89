package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset [id]",
	Short: "Send a failed or blocked idea back to routing",
	Long: `Clears the error history of a failed or blocked idea and returns it to the
unset state so the router picks it up again. The previous output is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s *store.Store) error {
		it, err := s.GetItem(id)
		if err != nil {
			return err
		}
		from := it.Status
		if err := pipeline.Reset(s, it); err != nil {
			if errors.Is(err, pipeline.ErrIllegalTransition) {
				return fmt.Errorf("idea #%d is %s; only failed or blocked ideas can be reset", id, from)
			}
			return err
		}
		fmt.Printf("Idea %s#%d%s reset (was %s%s%s)\n", colorCyan, id, colorReset, statusColor(from), from, colorReset)
		return nil
	})
}
