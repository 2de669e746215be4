package ingest

import (
	"regexp"
	"strings"
)

// Boilerplate lines dropped during cleaning. A pattern must match the whole
// line; anything else is kept.
var (
	rePageMarker = regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?$`)
	rePageNumber = regexp.MustCompile(`^\d{1,4}$`)
	reHeading    = regexp.MustCompile(`(?i)^(chapter|section)\s+(\d+|[ivxlcdm]+)[.:]?$`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// CleanText normalizes extracted text deterministically: boilerplate lines
// are dropped, whitespace runs inside a paragraph collapse to single spaces,
// and runs of blank lines collapse to one paragraph break. Same input, same
// output.
func CleanText(text string) string {
	var (
		paragraphs []string
		current    []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		p := reSpaces.ReplaceAllString(strings.Join(current, " "), " ")
		paragraphs = append(paragraphs, strings.TrimSpace(p))
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if rePageMarker.MatchString(trimmed) || rePageNumber.MatchString(trimmed) ||
			reHeading.MatchString(trimmed) {
			// A page break can interrupt a paragraph, so dropping the
			// marker joins the surrounding lines rather than splitting.
			continue
		}
		current = append(current, trimmed)
	}
	flush()
	return strings.Join(paragraphs, "\n\n")
}
