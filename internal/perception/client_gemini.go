package perception

import (
	"context"
	"fmt"
	"iter"
	"time"

	"google.golang.org/genai"

	"spectral/internal/config"
	"spectral/internal/logging"
)

// DefaultGeminiModel is used when the config leaves the model empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGeminiClient creates a Gemini client. The API key comes from the
// environment variable named in cfg.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (*GeminiClient, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: gemini API key not set", ErrNoProvider)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logging.LLM("Using gemini model %s", model)
	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
	}, nil
}

// Name returns gemini:model.
func (c *GeminiClient) Name() string { return "gemini:" + c.model }

func (c *GeminiClient) contentConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{Temperature: genai.Ptr(c.temperature)}
}

// Generate sends prompt and returns the full reply.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.contentConfig())
	logCall(c.Name(), prompt, start, err)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// GenerateStream yields reply chunks as Gemini produces them.
func (c *GeminiClient) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := withTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), c.contentConfig()) {
			if err != nil {
				logCall(c.Name(), prompt, start, err)
				yield("", fmt.Errorf("GenAI stream failed: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
		logCall(c.Name(), prompt, start, nil)
	}
}
