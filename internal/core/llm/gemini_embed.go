package llm

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

// GeminiEmbedder implements core.EmbeddingProvider on Gemini's embedding
// models (768-dimensional vectors for text-embedding-004).
type GeminiEmbedder struct {
	model *genai.EmbeddingModel
	log   *zap.Logger
}

// NewGeminiEmbedder binds the embedder to one embedding model.
func NewGeminiEmbedder(client *genai.Client, modelName string, log *zap.Logger) *GeminiEmbedder {
	return &GeminiEmbedder{model: client.EmbeddingModel(modelName), log: log}
}

func (e *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, core.NewError(core.CodeEmbedding, "embed text", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, core.Errf(core.CodeEmbedding, "embedding response was empty")
	}
	return res.Embedding.Values, nil
}

func (e *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, core.NewError(core.CodeEmbedding, "embed batch", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, core.Errf(core.CodeEmbedding,
			"embedding response had %d vectors for %d inputs", len(res.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, core.Errf(core.CodeEmbedding, "embedding %d was empty", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
