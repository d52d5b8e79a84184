package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ".souffle", cfg.Workspace.BaseDir)
	assert.Equal(t, "souffle", cfg.Engine.Binary)
	assert.Equal(t, "Error:", cfg.Engine.FailureMarker)
	assert.Equal(t, ".dl", cfg.Library.Extension)
	assert.True(t, cfg.Library.Override)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("SOUFFLE_BIN", "")
	t.Setenv("DLSHELL_BASE_DIR", "")

	path := filepath.Join(t.TempDir(), "nested", "dlshell.yaml")

	cfg := DefaultConfig()
	cfg.Engine.Binary = "/opt/souffle/bin/souffle"
	cfg.Engine.ExtraArgs = []string{"-j", "4"}
	cfg.Library.Recursive = true

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/souffle/bin/souffle", loaded.Engine.Binary)
	assert.Equal(t, []string{"-j", "4"}, loaded.Engine.ExtraArgs)
	assert.True(t, loaded.Library.Recursive)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("SOUFFLE_BIN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("SOUFFLE_BIN", "")
	path := filepath.Join(t.TempDir(), "dlshell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  timeout: 30s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.GetEngineTimeout())
	assert.Equal(t, "souffle", cfg.Engine.Binary)
	assert.Equal(t, "include", cfg.Workspace.IncludeDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlshell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetEngineTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Minute, cfg.GetEngineTimeout())

	cfg.Engine.Timeout = "0"
	assert.Equal(t, time.Duration(0), cfg.GetEngineTimeout())

	cfg.Engine.Timeout = "garbage"
	assert.Equal(t, 10*time.Minute, cfg.GetEngineTimeout())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base dir", func(c *Config) { c.Workspace.BaseDir = "" }},
		{"empty facts dir", func(c *Config) { c.Workspace.FactsDir = "" }},
		{"empty binary", func(c *Config) { c.Engine.Binary = "" }},
		{"bad timeout", func(c *Config) { c.Engine.Timeout = "soon" }},
		{"zero parallelism", func(c *Config) { c.Library.Parallelism = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestHistoryDBPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ".dlshell_history.db", cfg.HistoryDBPath())

	cfg.Workspace.BaseDir = filepath.Join("work", ".souffle")
	assert.Equal(t, filepath.Join("work", ".dlshell_history.db"), cfg.HistoryDBPath())

	cfg.Session.HistoryDB = "/tmp/h.db"
	assert.Equal(t, "/tmp/h.db", cfg.HistoryDBPath())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	assert.False(t, lc.IsCategoryEnabled("session"))

	lc.DebugMode = true
	assert.True(t, lc.IsCategoryEnabled("session"))

	lc.Categories = map[string]bool{"session": false}
	assert.False(t, lc.IsCategoryEnabled("session"))
	assert.True(t, lc.IsCategoryEnabled("engine"))
}
