package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser keeps the markdown source as page text and turns ATX and
// setext headings into outline entries. Form feeds split pages; each page is
// parsed on its own. Entry titles keep their inline markup so they can be
// found again in the page text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	doc := &Document{
		Title: titleFromFilename(filename),
		Pages: splitPages(strings.ReplaceAll(string(src), "\r\n", "\n")),
	}
	md := goldmark.New()
	for i := range doc.Pages {
		src := []byte(doc.Pages[i].Text)
		root := md.Parser().Parse(text.NewReader(src))
		for n := root.FirstChild(); n != nil; n = n.NextSibling() {
			h, ok := n.(*ast.Heading)
			if !ok {
				continue
			}
			title := headingSource(h, src)
			if title == "" {
				continue
			}
			doc.Pages[i].TOC = append(doc.Pages[i].TOC, doctree.TOCEntry{Level: h.Level, Title: title})
		}
	}
	return doc, nil
}

// headingSource returns the raw source of a heading's content, lines joined
// by a space. ATX markers and setext underlines are not part of it.
func headingSource(h *ast.Heading, src []byte) string {
	lines := h.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
