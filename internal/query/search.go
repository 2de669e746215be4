// Package query implements the retrieval side: prompt validation, ranked
// vector search, citation-aware context packing and answer synthesis.
package query

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Bounds for query requests.
const (
	DefaultTopK    = 5
	MaxTopK        = 20
	MaxPromptChars = 2000
)

// Request is one query against the indexed documents. UserID comes from the
// authenticated caller, never from the request body.
type Request struct {
	Prompt string `json:"prompt"`
	DocID  string `json:"doc_id,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
	UserID string `json:"-"`
}

// Validate bounds the prompt and top_k. Callers that allow an absent top_k
// substitute DefaultTopK before calling; an explicit zero is rejected.
func (r *Request) Validate() error {
	n := utf8.RuneCountInString(r.Prompt)
	if n == 0 {
		return core.Errf(core.CodeValidation, "prompt is required")
	}
	if n > MaxPromptChars {
		return core.Errf(core.CodeValidation, "prompt exceeds %d characters", MaxPromptChars)
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return core.Errf(core.CodeValidation, "top_k must be between 1 and %d", MaxTopK)
	}
	return nil
}

// SearchEngine ranks stored chunks by cosine similarity to a query vector,
// optionally scoped to one document. An empty result is a valid outcome.
type SearchEngine struct {
	db  core.Database
	log *zap.Logger
}

func NewSearchEngine(db core.Database, log *zap.Logger) *SearchEngine {
	return &SearchEngine{db: db, log: log}
}

func (s *SearchEngine) Search(ctx context.Context, embedding []float32, req *Request) ([]models.RetrievedChunk, error) {
	hits, err := s.db.SearchChunks(ctx, core.SearchQuery{
		Embedding: embedding,
		TopK:      req.TopK,
		UserID:    req.UserID,
		DocID:     req.DocID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("vector search finished",
		zap.Int("hits", len(hits)),
		zap.Int("top_k", req.TopK),
		zap.String("doc_id", req.DocID))
	return hits, nil
}
