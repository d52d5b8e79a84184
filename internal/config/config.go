package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".dlshell.yaml"

// Config holds all dlshell configuration.
type Config struct {
	// Session working layout
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Library building (rewrite + include generation)
	Library LibraryConfig `yaml:"library"`

	// External reasoning engine
	Engine EngineConfig `yaml:"engine"`

	// Interactive session
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// WorkspaceConfig names the session working area and its sub-areas.
type WorkspaceConfig struct {
	BaseDir    string `yaml:"base_dir"`
	IncludeDir string `yaml:"include_dir"`
	FactsDir   string `yaml:"facts_dir"`
	OutDir     string `yaml:"out_dir"`
	SourceDir  string `yaml:"source_dir"`
	CacheDir   string `yaml:"cache_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			BaseDir:    ".souffle",
			IncludeDir: "include",
			FactsDir:   "facts",
			OutDir:     "outs",
			SourceDir:  "dl",
			CacheDir:   "cache",
		},
		Library: LibraryConfig{
			Extension:   ".dl",
			Override:    true,
			Parallelism: 4,
		},
		Engine: EngineConfig{
			Binary:        "souffle",
			Timeout:       "10m",
			FailureMarker: "Error:",
		},
		Session: SessionConfig{
			HistoryDB:     "",
			ScanCacheSize: 256,
			WatchInclude:  true,
			Editor:        "emacs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if bin := os.Getenv("SOUFFLE_BIN"); bin != "" {
		c.Engine.Binary = bin
	}
	if d := os.Getenv("DLSHELL_ENGINE_TIMEOUT"); d != "" {
		c.Engine.Timeout = d
	}
	if dir := os.Getenv("DLSHELL_BASE_DIR"); dir != "" {
		c.Workspace.BaseDir = dir
	}
	if path := os.Getenv("DLSHELL_HISTORY_DB"); path != "" {
		c.Session.HistoryDB = path
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		c.Session.Editor = editor
	}
}

// GetEngineTimeout returns the engine timeout as a duration.
// Zero means the engine run is unbounded.
func (c *Config) GetEngineTimeout() time.Duration {
	if c.Engine.Timeout == "" || c.Engine.Timeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// HistoryDBPath returns the history database path. The default sits next to
// the base dir, which is wiped on every workspace preparation.
func (c *Config) HistoryDBPath() string {
	if c.Session.HistoryDB != "" {
		return c.Session.HistoryDB
	}
	return filepath.Join(filepath.Dir(filepath.Clean(c.Workspace.BaseDir)), ".dlshell_history.db")
}

// LogsDir returns the directory debug logs are written to.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Workspace.BaseDir, "logs")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workspace.BaseDir == "" {
		return fmt.Errorf("workspace base_dir not configured")
	}
	for name, dir := range map[string]string{
		"include_dir": c.Workspace.IncludeDir,
		"facts_dir":   c.Workspace.FactsDir,
		"out_dir":     c.Workspace.OutDir,
		"source_dir":  c.Workspace.SourceDir,
		"cache_dir":   c.Workspace.CacheDir,
	} {
		if dir == "" {
			return fmt.Errorf("workspace %s not configured", name)
		}
	}
	if c.Engine.Binary == "" {
		return fmt.Errorf("engine binary not configured (set SOUFFLE_BIN)")
	}
	if c.Engine.Timeout != "" && c.Engine.Timeout != "0" {
		if _, err := time.ParseDuration(c.Engine.Timeout); err != nil {
			return fmt.Errorf("invalid engine timeout %q: %w", c.Engine.Timeout, err)
		}
	}
	if c.Library.Parallelism < 1 {
		return fmt.Errorf("library parallelism must be at least 1, got %d", c.Library.Parallelism)
	}
	return nil
}
