package config

// LibraryConfig configures library building.
type LibraryConfig struct {
	Extension   string `yaml:"extension"`
	Recursive   bool   `yaml:"recursive"`
	Override    bool   `yaml:"override"` // rewrite source files in place
	OutDir      string `yaml:"out_dir"`  // mirror rewritten files here when override is false
	Parallelism int    `yaml:"parallelism"`
}
