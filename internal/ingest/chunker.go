package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
)

// Chunking defaults, in estimated tokens.
const (
	DefaultChunkTokens   = 700
	DefaultOverlapTokens = 120

	// tokensPerWord is the estimated conversion ratio between whitespace-
	// delimited words and model tokens.
	tokensPerWord = 1.3
)

// Chunk is one overlap-aware window of cleaned text.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// Chunker splits cleaned text into contiguous word windows sized by a token
// budget, each window starting overlapWords before the previous one ended.
type Chunker struct {
	maxWords     int
	overlapWords int
}

// NewChunker converts the token budgets to word counts using the estimated
// tokens-per-word ratio.
func NewChunker(chunkTokens, overlapTokens int) *Chunker {
	maxWords := int(float64(chunkTokens) / tokensPerWord)
	if maxWords < 1 {
		maxWords = 1
	}
	overlapWords := int(float64(overlapTokens) / tokensPerWord)
	if overlapWords >= maxWords {
		overlapWords = maxWords - 1
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	return &Chunker{maxWords: maxWords, overlapWords: overlapWords}
}

// Split produces the chunk sequence for text. Indices are assigned in
// emission order over surviving chunks; empty windows are dropped without
// leaving index gaps.
func (c *Chunker) Split(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []Chunk
	for start := 0; start < len(words); {
		end := start + c.maxWords
		if end > len(words) {
			end = len(words)
		}
		content := strings.TrimSpace(strings.Join(words[start:end], " "))
		if content != "" {
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Content:    content,
				TokenCount: EstimateTokens(content),
			})
		}
		if end == len(words) {
			break
		}
		start = end - c.overlapWords
	}
	return chunks
}

// EstimateTokens approximates the token count of text from its word count,
// rounded up.
func EstimateTokens(text string) int {
	n := len(strings.Fields(text))
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * tokensPerWord))
}

// HashContent returns the hex sha256 digest of chunk text, the cache and
// dedup key for embeddings.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
