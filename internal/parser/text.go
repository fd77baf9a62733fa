package parser

import (
	"fmt"
	"io"
	"strings"
)

// TextParser handles plain text. Form feeds separate pages; there is no
// outline, so headings are found by pattern.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	return &Document{
		Title: titleFromFilename(filename),
		Pages: splitPages(text),
	}, nil
}
