package core

import (
	"context"
	"io"
)

// TextExtractor converts raw document bytes into plain text. Implementations
// choose the extraction path from the declared media type, falling back to
// the file extension and finally to a UTF-8 plain-text read.
type TextExtractor interface {
	Extract(ctx context.Context, r io.Reader, contentType, fileName string) (string, error)
}
