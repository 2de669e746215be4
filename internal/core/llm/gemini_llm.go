package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

// Generation settings for grounded answers: low temperature keeps the model
// close to the supplied context, the output budget bounds answer length.
const (
	answerTemperature     = 0.1
	answerMaxOutputTokens = 1000
)

// GeminiLLM implements core.LLMProvider on a Gemini generative model.
type GeminiLLM struct {
	client    *genai.Client
	modelName string
	log       *zap.Logger
}

func NewGeminiLLM(client *genai.Client, modelName string, log *zap.Logger) *GeminiLLM {
	return &GeminiLLM{client: client, modelName: modelName, log: log}
}

// newModel configures a model instance for one request. The system message
// carries the packed retrieval context.
func (g *GeminiLLM) newModel(system string) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(answerTemperature)
	model.SetMaxOutputTokens(answerMaxOutputTokens)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model
}

// Generate runs one non-streaming completion. An empty string means the
// model returned no usable content; the caller decides the fallback.
func (g *GeminiLLM) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.newModel(system).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", core.NewError(core.CodeExternalAPI, "generate answer", err)
	}
	return firstText(resp), nil
}

// GenerateStream issues the same completion incrementally, invoking fn per
// delta in arrival order.
func (g *GeminiLLM) GenerateStream(ctx context.Context, system, prompt string, fn func(delta string) error) error {
	it := g.newModel(system).GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return core.NewError(core.CodeExternalAPI, "stream answer", err)
		}
		if delta := firstText(resp); delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

// firstText extracts the text of the first candidate, "" when the model
// returned nothing usable.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
