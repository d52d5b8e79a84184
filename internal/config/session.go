package config

// SessionConfig configures the interactive session.
type SessionConfig struct {
	HistoryDB     string `yaml:"history_db"`
	ScanCacheSize int    `yaml:"scan_cache_size"`
	WatchInclude  bool   `yaml:"watch_include"`
	Editor        string `yaml:"editor"`
}
