package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/store"
)

var (
	capturePriority  string
	captureCategory  string
	captureType      string
	captureAgent     string
	captureSummary   string
	captureOrganized bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [text]",
	Short: "Capture a new idea",
	Long: `Captures an idea into the inbox. Ideas are routed only once organized;
pass --organized to skip the organizing step.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVarP(&capturePriority, "priority", "p", "medium", "priority: high, medium, low")
	captureCmd.Flags().StringVar(&captureCategory, "category", "", "category hint (e.g. finance, health)")
	captureCmd.Flags().StringVar(&captureType, "type", "", "type hint (e.g. project, task)")
	captureCmd.Flags().StringVar(&captureAgent, "agent", "", "specialist to route to (see: ideaflow skills)")
	captureCmd.Flags().StringVar(&captureSummary, "summary", "", "short title")
	captureCmd.Flags().BoolVar(&captureOrganized, "organized", false, "mark as organized so the router picks it up")
}

func runCapture(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("idea text is empty")
	}

	return withStore(func(_ *config.Config, s *store.Store) error {
		n := store.NewItem{
			Text:           text,
			Priority:       capturePriority,
			AIType:         captureType,
			AICategory:     captureCategory,
			AISummary:      captureSummary,
			SuggestedAgent: captureAgent,
		}
		if captureOrganized {
			n.Stage = store.StageOrganized
		}
		it, err := s.CreateItem(n)
		if err != nil {
			return err
		}
		fmt.Printf("Captured idea %s#%d%s: %s\n", colorCyan, it.ID, colorReset, it.Title())
		if it.Stage != store.StageOrganized {
			fmt.Printf("%sNot organized yet; the router skips it until it is.%s\n", colorDim, colorReset)
		}
		return nil
	})
}
