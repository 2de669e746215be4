package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty input", "", ""},
		{"whitespace only", "  \n\t\n  ", ""},
		{"joins lines inside a paragraph", "line one\nline two", "line one line two"},
		{"keeps paragraph breaks", "para one\n\npara two", "para one\n\npara two"},
		{"collapses blank line runs", "a\n\n\n\nb", "a\n\nb"},
		{"collapses whitespace runs", "a \t  b", "a b"},
		{"trims surrounding whitespace", "  a  \n", "a"},
		{"handles carriage returns", "a\r\nb\r\n", "a b"},
		{"drops page markers", "before\nPage 3 of 10\nafter", "before after"},
		{"drops short page markers", "before\npage 7\nafter", "before after"},
		{"drops bare page numbers", "before\n42\nafter", "before after"},
		{"keeps long numbers", "before\n20250\nafter", "before 20250 after"},
		{"drops chapter headings", "Chapter 7\nbody text", "body text"},
		{"drops roman numeral headings", "Section IV:\nbody text", "body text"},
		{"keeps prose headings", "Chapter One\nbody text", "Chapter One body text"},
		{"keeps numbers inside sentences", "there are 42 items", "there are 42 items"},
		{
			"page break does not split a paragraph",
			"the sentence starts here\nPage 2\nand ends here",
			"the sentence starts here and ends here",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanTextDeterministic(t *testing.T) {
	in := "Chapter 1\nIntro   text with  runs\n\n\n12\nsecond paragraph\n"
	first := CleanText(in)
	assert.Equal(t, first, CleanText(in))
	assert.Equal(t, "Intro text with runs\n\nsecond paragraph", first)
}
