package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser extracts text page by page and places the bookmark outline on
// the pages where each bookmark's title first appears. It tries the Go
// library first and, when enabled, falls back to pdftotext.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Document, error) {
	// ledongthuc/pdf requires a ReaderAt and size, so write to a temp file.
	tmp, err := os.CreateTemp("", "docgraph-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, outline, err := readPDF(tmpPath)
	if err != nil && p.FallbackPdftotext {
		var text string
		text, err = extractPdftotext(tmpPath)
		pages = splitPages(strings.TrimSuffix(text, "\f"))
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	doc := &Document{
		Title: titleFromFilename(filename),
		Pages: pages,
	}
	doc.Unplaced = placeOutline(doc.Pages, outline)
	return doc, nil
}

func readPDF(path string) ([]doctree.Page, []doctree.TOCEntry, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	n := reader.NumPage()
	pages := make([]doctree.Page, 0, n)
	for i := 1; i <= n; i++ {
		page := doctree.Page{Number: i}
		if pg := reader.Page(i); !pg.V.IsNull() {
			if text, err := pg.GetPlainText(nil); err == nil {
				page.Text = text
			}
		}
		pages = append(pages, page)
	}
	return pages, flattenOutline(reader.Outline(), 0, nil), nil
}

// flattenOutline lists bookmarks in document order. Top-level bookmarks are
// level 1; the unnamed outline root is skipped.
func flattenOutline(o pdflib.Outline, depth int, out []doctree.TOCEntry) []doctree.TOCEntry {
	if depth > 0 {
		if title := collapseSpace(o.Title); title != "" {
			out = append(out, doctree.TOCEntry{Level: depth, Title: title})
		}
	}
	for _, c := range o.Child {
		out = flattenOutline(c, depth+1, out)
	}
	return out
}

// placeOutline assigns each entry to the first page, at or after the page of
// the previous placed entry, whose text contains the title with whitespace
// collapsed. Entries found nowhere are returned.
func placeOutline(pages []doctree.Page, entries []doctree.TOCEntry) []doctree.TOCEntry {
	if len(pages) == 0 {
		return entries
	}
	normalized := make([]string, len(pages))
	for i, p := range pages {
		normalized[i] = collapseSpace(p.Text)
	}

	var unplaced []doctree.TOCEntry
	cursor := 0
	for _, e := range entries {
		placed := false
		for i := cursor; i < len(pages); i++ {
			if strings.Contains(normalized[i], e.Title) {
				pages[i].TOC = append(pages[i].TOC, e)
				cursor = i
				placed = true
				break
			}
		}
		if !placed {
			unplaced = append(unplaced, e)
		}
	}
	return unplaced
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
