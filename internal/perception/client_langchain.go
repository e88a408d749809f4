package perception

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"spectral/internal/config"
	"spectral/internal/logging"
)

// LangchainClient talks to ollama or any OpenAI-compatible endpoint through
// langchaingo.
type LangchainClient struct {
	model       llms.Model
	name        string
	temperature float64
	timeout     time.Duration
}

// NewLangchainClient builds an ollama or openai backed client.
func NewLangchainClient(cfg config.LLMConfig, timeout time.Duration) (*LangchainClient, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	case "openai":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: openai API key not set", ErrNoProvider)
		}
		opts := []openai.Option{openai.WithToken(key), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" && cfg.BaseURL != config.DefaultOllamaURL {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: langchain does not serve %q", ErrNoProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	logging.LLM("Using %s model %s", cfg.Provider, cfg.Model)
	return &LangchainClient{
		model:       model,
		name:        cfg.Provider + ":" + cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

// Name returns provider:model.
func (c *LangchainClient) Name() string { return c.name }

// Generate sends prompt and returns the full reply.
func (c *LangchainClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
	logCall(c.name, prompt, start, err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	return out, nil
}

// GenerateStream yields reply chunks as the backend produces them. Breaking
// out of the loop cancels the request.
func (c *LangchainClient) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := withTimeout(ctx, c.timeout)
		defer cancel()

		chunks := make(chan string)
		errc := make(chan error, 1)
		start := time.Now()
		go func() {
			defer close(chunks)
			_, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
				llms.WithTemperature(c.temperature),
				llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					select {
					case chunks <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}))
			errc <- err
		}()

		for chunk := range chunks {
			if !yield(chunk, nil) {
				cancel()
				for range chunks {
				}
				return
			}
		}
		err := <-errc
		logCall(c.name, prompt, start, err)
		if err != nil {
			yield("", fmt.Errorf("%s: %w", c.name, err))
		}
	}
}
