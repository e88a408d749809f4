package config

import "os"

// ValidProviders lists all supported text-generation backends.
var ValidProviders = []string{"ollama", "openai", "gemini"}

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // ollama, openai, gemini
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`

	// APIKeyEnv names the variable holding the key. Defaults per provider.
	APIKeyEnv string `yaml:"api_key_env"`
}

func (c LLMConfig) apiKeyEnv() string {
	if c.APIKeyEnv != "" {
		return c.APIKeyEnv
	}
	switch c.Provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return ""
}

// APIKey resolves the key from the environment. Keys are never stored in
// the YAML file.
func (c LLMConfig) APIKey() string {
	name := c.apiKeyEnv()
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// DefaultOllamaURL is the local ollama server address.
const DefaultOllamaURL = "http://localhost:11434"
