package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/skills"
)

var skillsCmd = &cobra.Command{
	Use:   "skills [agent]",
	Short: "List specialists and the SOP files they load",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSkills,
}

func runSkills(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loader := skills.NewLoader(cfg.SkillsDir)

	if len(args) == 1 {
		a, ok := skills.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown agent %q (known: %s)", args[0], strings.Join(skills.AgentKeys(), ", "))
		}
		fmt.Printf("%s%s%s (%s)\n\n", colorBold, a.Name, colorReset, a.Key)
		for _, rel := range a.Skills {
			mark := colorGreen + "ok" + colorReset
			if _, err := loader.Load(rel); err != nil {
				mark = colorRed + "missing" + colorReset
			}
			fmt.Printf("  %-40s %s\n", rel, mark)
		}
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Agent", "Name", "Skills"})
	for _, key := range skills.AgentKeys() {
		a, _ := skills.Lookup(key)
		tw.AppendRow(table.Row{a.Key, a.Name, len(a.Skills)})
	}
	tw.Render()

	files, err := loader.List()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d SOP files under %s/\n", len(files), loader.Dir())
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}
