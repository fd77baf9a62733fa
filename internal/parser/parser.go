// Package parser extracts per-page text and, where the format has one, the
// document's own heading outline.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Document is the parsed form of an uploaded file.
type Document struct {
	Title string
	Pages []doctree.Page
	// Unplaced lists outline entries that matched no page text.
	Unplaced []doctree.TOCEntry
}

// Text returns every page's text joined by form feeds.
func (d *Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\f")
}

// TOCEntries counts outline entries across all pages.
func (d *Document) TOCEntries() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.TOC)
	}
	return n
}

// Parser converts raw document bytes into pages.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

type options struct {
	pdftotext bool
}

type Option func(*options)

// WithPdftotextFallback makes the PDF parser shell out to pdftotext when the
// Go reader cannot open a file.
func WithPdftotextFallback(on bool) Option {
	return func(o *options) { o.pdftotext = on }
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts ...Option) (Parser, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: o.pdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitPages cuts text at form feeds. Pages are numbered from 1 and keep
// their position even when blank.
func splitPages(text string) []doctree.Page {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\f")
	pages := make([]doctree.Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, doctree.Page{Number: i + 1, Text: p})
	}
	return pages
}
