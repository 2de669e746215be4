package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The test budgets convert to 5-word windows with a 2-word overlap:
// int(7/1.3) = 5 and int(3/1.3) = 2.
func testChunker() *Chunker {
	return NewChunker(7, 3)
}

func TestChunkerSplit(t *testing.T) {
	c := testChunker()

	t.Run("empty input yields no chunks", func(t *testing.T) {
		assert.Nil(t, c.Split(""))
		assert.Nil(t, c.Split("   \n\t  "))
	})

	t.Run("short text yields one identical chunk", func(t *testing.T) {
		text := "one two three four five"
		chunks := c.Split(text)
		require.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, text, chunks[0].Content)
		assert.Equal(t, 7, chunks[0].TokenCount)
	})

	t.Run("windows overlap by two words", func(t *testing.T) {
		chunks := c.Split("w0 w1 w2 w3 w4 w5 w6 w7")
		require.Len(t, chunks, 2)
		assert.Equal(t, "w0 w1 w2 w3 w4", chunks[0].Content)
		assert.Equal(t, "w3 w4 w5 w6 w7", chunks[1].Content)
	})

	t.Run("indices are sequential from zero", func(t *testing.T) {
		chunks := c.Split(strings.Repeat("word ", 40))
		require.NotEmpty(t, chunks)
		for i, ch := range chunks {
			assert.Equal(t, i, ch.Index)
		}
	})

	t.Run("no window exceeds the word budget", func(t *testing.T) {
		chunks := c.Split(strings.Repeat("word ", 40))
		for _, ch := range chunks {
			assert.LessOrEqual(t, len(strings.Fields(ch.Content)), 5)
		}
	})

	t.Run("splitting a produced chunk is stable", func(t *testing.T) {
		chunks := c.Split(strings.Repeat("word ", 40))
		require.NotEmpty(t, chunks)
		again := c.Split(chunks[0].Content)
		require.Len(t, again, 1)
		assert.Equal(t, chunks[0].Content, again[0].Content)
	})
}

// Dropping each later window's leading overlap words and concatenating must
// reconstruct the original word sequence exactly.
func TestChunkerSplitReconstructsInput(t *testing.T) {
	c := testChunker()
	words := make([]string, 23)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	chunks := c.Split(strings.Join(words, " "))
	require.NotEmpty(t, chunks)

	rebuilt := strings.Fields(chunks[0].Content)
	for _, ch := range chunks[1:] {
		fields := strings.Fields(ch.Content)
		require.Greater(t, len(fields), 2)
		rebuilt = append(rebuilt, fields[2:]...)
	}
	assert.Equal(t, words, rebuilt)
}

func TestNewChunkerGuards(t *testing.T) {
	t.Run("overlap at least one below window", func(t *testing.T) {
		c := NewChunker(7, 700)
		chunks := c.Split(strings.Repeat("word ", 20))
		// A full-window overlap would never advance; termination is the assertion.
		require.NotEmpty(t, chunks)
	})

	t.Run("tiny budget still emits single-word windows", func(t *testing.T) {
		c := NewChunker(1, 0)
		chunks := c.Split("alpha beta gamma")
		require.Len(t, chunks, 3)
		assert.Equal(t, "alpha", chunks[0].Content)
		assert.Equal(t, "gamma", chunks[2].Content)
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 2, EstimateTokens("word"))            // ceil(1.3)
	assert.Equal(t, 7, EstimateTokens("a b c d e"))       // ceil(6.5)
	assert.Equal(t, 13, EstimateTokens(strings.Repeat("w ", 10))) // ceil(13.0)
}

func TestHashContent(t *testing.T) {
	a := HashContent("same text")
	b := HashContent("same text")
	other := HashContent("different text")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, a, 64)
}
