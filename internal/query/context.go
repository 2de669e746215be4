package query

import (
	"fmt"
	"strings"

	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

const packPreamble = `Answer the question using only the information provided below. Cite the sources you use with bracketed indices like [1].

`

const packClosing = `
Cite every claim with its source index in the form [n]. If the information above is not sufficient to answer the question, say so explicitly.`

// PackContext assembles the grounded system prompt from ranked chunks.
// Citation indices are positional: rank 1 becomes [1] regardless of the
// chunk's underlying id.
func PackContext(chunks []models.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString(packPreamble)
	for i, ch := range chunks {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, ch.Content)
	}
	sb.WriteString(packClosing)
	return sb.String()
}
