package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all spectral configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Text-generation collaborator
	LLM LLMConfig `yaml:"llm"`

	// Run directories and verification gates
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Step execution and retry budgets
	Execution ExecutionConfig `yaml:"execution"`

	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfigPath is where Load looks when no path is given.
const DefaultConfigPath = ".spectral/config.yaml"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "spectral",
		Version: "0.4.0",

		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "llama3.1",
			BaseURL:     DefaultOllamaURL,
			Temperature: 0.2,
			Timeout:     "120s",
		},

		Sandbox: SandboxConfig{
			BaseDir:      filepath.Join(os.TempDir(), "spectral-runs"),
			Python:       "python3",
			Pytest:       []string{"python3", "-m", "pytest"},
			SmokeTimeout: "5s",
			TestTimeout:  "60s",
		},

		Execution: ExecutionConfig{
			DefaultTimeout:   "30s",
			MaxRetries:       3,
			DirectConfidence: 0.6,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Dir:    ".spectral/logs",
		},
	}
}

// Load loads configuration from a YAML file. A .env file next to the config
// (or in the working directory) is loaded first so API keys can stay out of
// the YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	loadDotEnv(filepath.Join(filepath.Dir(filepath.Dir(path)), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
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

// loadDotEnv loads the first .env file found. Existing variables win.
func loadDotEnv(candidates ...string) {
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
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
	if p := os.Getenv("SPECTRAL_PROVIDER"); p != "" {
		c.LLM.Provider = p
	}
	if m := os.Getenv("SPECTRAL_MODEL"); m != "" {
		c.LLM.Model = m
	}
	if u := os.Getenv("SPECTRAL_BASE_URL"); u != "" {
		c.LLM.BaseURL = u
	}
	if d := os.Getenv("SPECTRAL_SANDBOX_DIR"); d != "" {
		c.Sandbox.BaseDir = d
	}
	if py := os.Getenv("SPECTRAL_PYTHON"); py != "" {
		c.Sandbox.Python = py
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetExecutionTimeout returns the default per-attempt step timeout.
func (c *Config) GetExecutionTimeout() time.Duration {
	return parseDuration(c.Execution.DefaultTimeout, 30*time.Second)
}

// GetSmokeTimeout returns the smoke-run timeout.
func (c *Config) GetSmokeTimeout() time.Duration {
	return parseDuration(c.Sandbox.SmokeTimeout, 5*time.Second)
}

// GetTestTimeout returns the pytest gate timeout.
func (c *Config) GetTestTimeout() time.Duration {
	return parseDuration(c.Sandbox.TestTimeout, 60*time.Second)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Provider != "ollama" && c.LLM.APIKey() == "" {
		return fmt.Errorf("no API key for provider %s (set %s)", c.LLM.Provider, c.LLM.apiKeyEnv())
	}

	for name, v := range map[string]string{
		"llm.timeout":               c.LLM.Timeout,
		"sandbox.smoke_timeout":     c.Sandbox.SmokeTimeout,
		"sandbox.test_timeout":      c.Sandbox.TestTimeout,
		"execution.default_timeout": c.Execution.DefaultTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, v)
		}
	}

	if c.Execution.MaxRetries < 1 {
		return fmt.Errorf("execution.max_retries must be at least 1, got %d", c.Execution.MaxRetries)
	}
	if c.Execution.DirectConfidence < 0 || c.Execution.DirectConfidence > 1 {
		return fmt.Errorf("execution.direct_confidence must be in [0,1], got %v", c.Execution.DirectConfidence)
	}
	return nil
}
