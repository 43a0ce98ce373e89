package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ideaflow in the current directory",
	Long:  "Creates a .ideaflow/ directory with default config and database, plus the skills and projects directories.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(workspaceDirName); err == nil {
		return fmt.Errorf("ideaflow already initialized in this directory (%s/ exists)", workspaceDirName)
	}
	if err := os.MkdirAll(workspaceDirName, 0755); err != nil {
		return fmt.Errorf("create %s: %w", workspaceDirName, err)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(configPath(), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	for _, dir := range []string{cfg.SkillsDir, cfg.ProjectsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Printf("Initialized ideaflow in %s/\n", workspaceDirName)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to order your model backends\n", configPath())
	fmt.Printf("  2. Put your SOPs under %s/ (core/, customizable/)\n", cfg.SkillsDir)
	fmt.Println("  3. Run: ideaflow capture --organized \"your idea\"")
	fmt.Println("  4. Run: ideaflow run")
	return nil
}
