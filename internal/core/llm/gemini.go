// Package llm provides the Gemini-backed embedding and generation providers.
package llm

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

// NewGeminiClient opens one genai client shared by the embedder and the
// generator. The caller closes it on shutdown.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, core.NewError(core.CodeExternalAPI, "create gemini client", err)
	}
	return client, nil
}
