package perception

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"spectral/internal/config"
	"spectral/internal/logging"
	"spectral/internal/types"
)

// ErrNoProvider is returned when the configured provider is unknown or
// cannot be reached with the available credentials.
var ErrNoProvider = errors.New("no text-generation provider available")

// Client is a text-generation backend with streaming support.
type Client interface {
	types.StreamingGenerator
	Name() string
}

// NewClient builds the backend named by cfg.Provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	switch cfg.Provider {
	case "ollama", "openai":
		return NewLangchainClient(cfg, timeout)
	case "gemini":
		return NewGeminiClient(ctx, cfg, timeout)
	case "":
		return nil, ErrNoProvider
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, cfg.Provider)
}

// Collect drains a stream into one string, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var out []byte
	for chunk, err := range seq {
		if err != nil {
			return string(out), err
		}
		out = append(out, chunk...)
	}
	return string(out), nil
}

// withTimeout bounds one collaborator call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func logCall(name, prompt string, start time.Time, err error) {
	if err != nil {
		logging.LLMError("%s generation failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		return
	}
	logging.LLMDebug("%s generation finished in %s (prompt %d chars)", name, time.Since(start).Round(time.Millisecond), len(prompt))
}
