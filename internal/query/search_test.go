package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{Prompt: "what is photosynthesis?", TopK: 5}, false},
		{"top_k at lower bound", Request{Prompt: "q", TopK: 1}, false},
		{"top_k at upper bound", Request{Prompt: "q", TopK: MaxTopK}, false},
		{"prompt at limit", Request{Prompt: strings.Repeat("ü", MaxPromptChars), TopK: 5}, false},
		{"empty prompt", Request{TopK: 5}, true},
		{"prompt over limit", Request{Prompt: strings.Repeat("ü", MaxPromptChars+1), TopK: 5}, true},
		{"explicit zero top_k", Request{Prompt: "q", TopK: 0}, true},
		{"negative top_k", Request{Prompt: "q", TopK: -3}, true},
		{"top_k over limit", Request{Prompt: "q", TopK: MaxTopK + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, core.CodeValidation, core.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchEnginePassesFilters(t *testing.T) {
	db := &queryDB{hits: testHits()}
	s := NewSearchEngine(db, zap.NewNop())
	req := &Request{Prompt: "q", TopK: 7, UserID: "user-1", DocID: "doc-9"}
	vec := []float32{0.3, 0.4}

	hits, err := s.Search(context.Background(), vec, req)
	require.NoError(t, err)
	assert.Equal(t, testHits(), hits)

	require.NotNil(t, db.gotQuery)
	assert.Equal(t, vec, db.gotQuery.Embedding)
	assert.Equal(t, 7, db.gotQuery.TopK)
	assert.Equal(t, "user-1", db.gotQuery.UserID)
	assert.Equal(t, "doc-9", db.gotQuery.DocID)
}
