package config

// ExecutionConfig configures step execution and retries.
type ExecutionConfig struct {
	// Per-attempt timeout for planned steps
	DefaultTimeout string `yaml:"default_timeout"`

	// Attempts per step before the plan aborts
	MaxRetries int `yaml:"max_retries"`

	// Minimum router confidence for direct mode
	DirectConfidence float64 `yaml:"direct_confidence"`
}

// SandboxConfig configures run directories and verification gates.
type SandboxConfig struct {
	BaseDir      string   `yaml:"base_dir"`
	Python       string   `yaml:"python"`
	Pytest       []string `yaml:"pytest"`
	SmokeTimeout string   `yaml:"smoke_timeout"`
	TestTimeout  string   `yaml:"test_timeout"`

	// KeepRuns leaves run directories in place after verification.
	KeepRuns bool `yaml:"keep_runs"`
}
