// Package ingest implements the document pipeline: extract, clean, chunk,
// embed, persist, with document status tracked end to end.
package ingest

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

// Media types the extractor dispatches on. Anything unmatched degrades to a
// plain UTF-8 read rather than being rejected.
const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// DocconvExtractor implements core.TextExtractor, with docconv handling the
// binary formats.
type DocconvExtractor struct{}

var _ core.TextExtractor = (*DocconvExtractor)(nil)

func NewExtractor() *DocconvExtractor { return &DocconvExtractor{} }

func (e *DocconvExtractor) Extract(ctx context.Context, r io.Reader, contentType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch mime := resolveMediaType(contentType, fileName); mime {
	case mimePDF, mimeDocx:
		res, err := docconv.Convert(r, mime, false)
		if err != nil {
			return "", core.NewError(core.CodeExtraction, "extract document text", err)
		}
		return res.Body, nil
	default:
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", core.NewError(core.CodeExtraction, "read document bytes", err)
		}
		// Invalid byte sequences are dropped rather than failing the read.
		return strings.ToValidUTF8(string(raw), ""), nil
	}
}

// resolveMediaType picks the extraction path: declared media type first,
// file extension second, plain text for anything unmatched.
func resolveMediaType(contentType, fileName string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case mimePDF, mimeDocx:
		return ct
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDocx
	}
	return mimeText
}
