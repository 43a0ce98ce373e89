package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the per-call timeout for a text-generation backend.
const DefaultTimeout = 300

// Config is the root configuration for an ideaflow workspace.
type Config struct {
	Version         int       `yaml:"version"`
	DBPath          string    `yaml:"db_path"`
	SkillsDir       string    `yaml:"skills_dir"`
	ProjectsDir     string    `yaml:"projects_dir"`
	Intervals       Intervals `yaml:"intervals"`
	MonitorInterval int       `yaml:"monitor_interval"` // seconds
	Backends        []Backend `yaml:"backends"`
	Notify          Notify    `yaml:"notify"`
	Build           Build     `yaml:"build"`
}

// Intervals holds the polling interval of each stage worker, in seconds.
type Intervals struct {
	PM         int `yaml:"pm"`
	Dev        int `yaml:"dev"`
	Builder    int `yaml:"builder"`
	QA         int `yaml:"qa"`
	Consulting int `yaml:"consulting"`
	Reviewer   int `yaml:"reviewer"`
}

// For returns the interval for a worker selector (pm, dev, builder, qa,
// consulting, reviewer). Unknown names get a minute.
func (i Intervals) For(name string) time.Duration {
	secs := map[string]int{
		"pm":         i.PM,
		"dev":        i.Dev,
		"builder":    i.Builder,
		"qa":         i.QA,
		"consulting": i.Consulting,
		"reviewer":   i.Reviewer,
	}[name]
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// Backend describes one text-generation provider. Backends are tried in the
// order they are listed.
type Backend struct {
	Name       string   `yaml:"name"`
	Provider   string   `yaml:"provider"`              // ollama, google, anthropic, openai, cli
	Model      string   `yaml:"model,omitempty"`       // Model name for API providers
	URL        string   `yaml:"url,omitempty"`         // Base URL (ollama, openai-compatible)
	APIKeyEnv  string   `yaml:"api_key_env,omitempty"` // Env var name containing API key
	Cmd        string   `yaml:"cmd,omitempty"`         // CLI command to spawn
	Args       []string `yaml:"args,omitempty"`        // CLI arguments
	TimeoutSec int      `yaml:"timeout_sec,omitempty"` // Timeout in seconds (0 = default 300)
	AutoAccept bool     `yaml:"auto_accept,omitempty"` // Skip interactive permission prompts
}

// EffectiveArgs returns the final args for a CLI backend, injecting the
// non-interactive flags known CLI tools need when driven from a pipeline.
func (b Backend) EffectiveArgs() []string {
	if b.Provider != "cli" {
		return b.Args
	}

	args := make([]string, len(b.Args))
	copy(args, b.Args)

	switch b.Cmd {
	case "claude":
		if !containsAny(args, "-p", "--print") {
			args = appendFront(args, "--print")
		}
		if b.AutoAccept && !containsAny(args, "--dangerously-skip-permissions", "--permission-mode") {
			args = appendFront(args, "--dangerously-skip-permissions")
		}
	case "gemini":
		if b.AutoAccept && !containsAny(args, "-y", "--yolo") {
			args = appendFront(args, "--yolo")
		}
	case "ollama":
		if !containsAny(args, "run") {
			args = appendFront(args, "run")
		}
	}
	return args
}

// Timeout returns the effective per-call timeout.
func (b Backend) Timeout() time.Duration {
	if b.TimeoutSec > 0 {
		return time.Duration(b.TimeoutSec) * time.Second
	}
	return DefaultTimeout * time.Second
}

// Notify configures the optional Telegram channel.
type Notify struct {
	TelegramTokenEnv string `yaml:"telegram_token_env"`
	TelegramChatEnv  string `yaml:"telegram_chat_env"`
	TelegramToken    string `yaml:"-"`
	TelegramChatID   string `yaml:"-"`
}

// Enabled reports whether both token and chat are known.
func (n Notify) Enabled() bool {
	return n.TelegramToken != "" && n.TelegramChatID != ""
}

// Build configures the build/execute capability.
type Build struct {
	Python            string `yaml:"python"`
	InstallTimeoutSec int    `yaml:"install_timeout_sec"`
	CompileTimeoutSec int    `yaml:"compile_timeout_sec"`
	StartupWaitSec    int    `yaml:"startup_wait_sec"`
	KillGraceSec      int    `yaml:"kill_grace_sec"`
	BasePort          int    `yaml:"base_port"`
}

// Load reads and parses the config file at the given path. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the stock pipeline: local model first, then Gemini,
// then Claude.
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		DBPath:      ".ideaflow/ideaflow.db",
		SkillsDir:   "skills",
		ProjectsDir: "projects",
		Intervals: Intervals{
			PM:         30,
			Dev:        60,
			Builder:    45,
			QA:         60,
			Consulting: 45,
			Reviewer:   90,
		},
		MonitorInterval: 120,
		Backends: []Backend{
			{Name: "local", Provider: "ollama", Model: "qwen2.5-coder:7b", URL: "http://localhost:11434"},
			{Name: "gemini", Provider: "google", Model: "gemini-2.5-flash", APIKeyEnv: "GEMINI_API_KEY"},
			{Name: "claude", Provider: "anthropic", Model: "claude-sonnet-4-5", APIKeyEnv: "ANTHROPIC_API_KEY"},
		},
		Notify: Notify{
			TelegramTokenEnv: "TELEGRAM_BOT_TOKEN",
			TelegramChatEnv:  "TELEGRAM_CHAT_ID",
		},
		Build: Build{
			Python:            "python3",
			InstallTimeoutSec: 120,
			CompileTimeoutSec: 30,
			StartupWaitSec:    15,
			KillGraceSec:      5,
			BasePort:          5100,
		},
	}
}

// fillDefaults restores zero values a partial config file left behind.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.SkillsDir == "" {
		c.SkillsDir = d.SkillsDir
	}
	if c.ProjectsDir == "" {
		c.ProjectsDir = d.ProjectsDir
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.Build.Python == "" {
		c.Build.Python = d.Build.Python
	}
	if c.Build.InstallTimeoutSec <= 0 {
		c.Build.InstallTimeoutSec = d.Build.InstallTimeoutSec
	}
	if c.Build.CompileTimeoutSec <= 0 {
		c.Build.CompileTimeoutSec = d.Build.CompileTimeoutSec
	}
	if c.Build.StartupWaitSec <= 0 {
		c.Build.StartupWaitSec = d.Build.StartupWaitSec
	}
	if c.Build.KillGraceSec <= 0 {
		c.Build.KillGraceSec = d.Build.KillGraceSec
	}
	if c.Build.BasePort <= 0 {
		c.Build.BasePort = d.Build.BasePort
	}
}

// ApplyEnv overlays the environment-style settings bound in v. Only keys
// that are set override the file.
func (c *Config) ApplyEnv(v *viper.Viper) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) && v.GetString(key) != "" {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) && v.GetInt(key) > 0 {
			*dst = v.GetInt(key)
		}
	}

	setString("DB_PATH", &c.DBPath)
	setString("SKILLS_DIR", &c.SkillsDir)
	setString("PROJECTS_DIR", &c.ProjectsDir)

	setInt("INTERVALO_PM", &c.Intervals.PM)
	setInt("INTERVALO_DEV", &c.Intervals.Dev)
	setInt("INTERVALO_BUILDER", &c.Intervals.Builder)
	setInt("INTERVALO_QA", &c.Intervals.QA)
	setInt("INTERVALO_CONSULTING", &c.Intervals.Consulting)
	setInt("INTERVALO_REVIEWER", &c.Intervals.Reviewer)

	for i := range c.Backends {
		b := &c.Backends[i]
		switch b.Provider {
		case "ollama":
			setString("OLLAMA_URL", &b.URL)
			setString("LOCAL_MODEL", &b.Model)
		case "google":
			setString("GEMINI_MODEL", &b.Model)
		case "anthropic":
			setString("CLAUDE_MODEL", &b.Model)
		}
	}

	if c.Notify.TelegramTokenEnv != "" {
		c.Notify.TelegramToken = v.GetString(c.Notify.TelegramTokenEnv)
	}
	if c.Notify.TelegramChatEnv != "" {
		c.Notify.TelegramChatID = v.GetString(c.Notify.TelegramChatEnv)
	}
}

// BindEnv registers every environment key ApplyEnv reads.
func BindEnv(v *viper.Viper, cfg *Config) {
	keys := []string{
		"DB_PATH", "SKILLS_DIR", "PROJECTS_DIR",
		"INTERVALO_PM", "INTERVALO_DEV", "INTERVALO_BUILDER",
		"INTERVALO_QA", "INTERVALO_CONSULTING", "INTERVALO_REVIEWER",
		"OLLAMA_URL", "LOCAL_MODEL", "GEMINI_MODEL", "CLAUDE_MODEL",
	}
	if cfg.Notify.TelegramTokenEnv != "" {
		keys = append(keys, cfg.Notify.TelegramTokenEnv)
	}
	if cfg.Notify.TelegramChatEnv != "" {
		keys = append(keys, cfg.Notify.TelegramChatEnv)
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func (c *Config) validate() error {
	seen := map[string]bool{}
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend %d: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backend %q: duplicate name", b.Name)
		}
		seen[b.Name] = true
		switch b.Provider {
		case "ollama", "openai":
			if b.Model == "" {
				return fmt.Errorf("backend %q: model is required for %s", b.Name, b.Provider)
			}
		case "google", "anthropic":
			if b.APIKeyEnv == "" {
				return fmt.Errorf("backend %q: api_key_env is required for %s", b.Name, b.Provider)
			}
		case "cli":
			if b.Cmd == "" {
				return fmt.Errorf("backend %q: cmd is required for cli provider", b.Name)
			}
		case "":
			return fmt.Errorf("backend %q: provider is required", b.Name)
		default:
			return fmt.Errorf("backend %q: unknown provider %q", b.Name, strings.TrimSpace(b.Provider))
		}
	}
	return nil
}

// containsAny checks if any of the targets exist in the slice.
func containsAny(slice []string, targets ...string) bool {
	for _, s := range slice {
		for _, t := range targets {
			if s == t {
				return true
			}
		}
	}
	return false
}

// appendFront inserts a value at the beginning of a slice.
func appendFront(slice []string, val string) []string {
	return append([]string{val}, slice...)
}
