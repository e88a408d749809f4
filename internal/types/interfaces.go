package types

import (
	"context"
	"iter"
)

// Generator is the text-generation collaborator. Backends live in
// internal/perception.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StreamingGenerator is implemented by backends that can stream tokens.
// The sequence yields chunks in order; a non-nil error ends it.
type StreamingGenerator interface {
	Generator
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}
