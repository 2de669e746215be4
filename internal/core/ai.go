package core

import "context"

// EmbeddingProvider turns text into dense vectors. Implementations must
// return one vector per input, in input order.
type EmbeddingProvider interface {
	// EmbedText embeds a single piece of text, used for queries.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts embeds a batch of texts in one round trip.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider produces grounded answers. The system message carries the
// packed context, the prompt is the user's question.
type LLMProvider interface {
	// Generate returns the complete answer in one shot.
	Generate(ctx context.Context, system, prompt string) (string, error)
	// GenerateStream invokes fn once per output delta, in order. A non-nil
	// error from fn aborts the stream and is returned.
	GenerateStream(ctx context.Context, system, prompt string, fn func(delta string) error) error
}
