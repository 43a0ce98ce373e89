package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/store"
)

const workspaceDirName = ".ideaflow"

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// workspacePath returns the path to a file inside .ideaflow/.
func workspacePath(parts ...string) string {
	elems := append([]string{workspaceDirName}, parts...)
	return filepath.Join(elems...)
}

func configPath() string {
	return workspacePath("config.yaml")
}

// loadConfig reads the config file and overlays the environment and the
// --db flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	config.BindEnv(viper.GetViper(), cfg)
	cfg.ApplyEnv(viper.GetViper())
	if db := viper.GetString("db"); db != "" {
		cfg.DBPath = db
	}
	return cfg, nil
}

// mustStore opens the store, returning an error if the database does not
// exist yet.
func mustStore(cfg *config.Config) (*store.Store, error) {
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no database at %s. Run: ideaflow init", cfg.DBPath)
	}
	return store.New(cfg.DBPath)
}

// withStore loads the config, opens the store and closes it after fn.
func withStore(fn func(cfg *config.Config, s *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cfg, s)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item ID: %s", arg)
	}
	return id, nil
}

func statusColor(s store.Status) string {
	switch s {
	case store.StatusCompleted:
		return colorGreen
	case store.StatusFailed, store.StatusBlocked:
		return colorRed
	case store.StatusInProgress:
		return colorYellow
	case store.StatusNone:
		return colorDim
	}
	return colorCyan
}

func short(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
