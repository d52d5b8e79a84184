package config

// EngineConfig configures the external reasoning engine.
type EngineConfig struct {
	Binary        string   `yaml:"binary"`
	ExtraArgs     []string `yaml:"extra_args"`
	Timeout       string   `yaml:"timeout"`        // "0" disables the bound
	FailureMarker string   `yaml:"failure_marker"` // searched for in the engine's stderr
}
