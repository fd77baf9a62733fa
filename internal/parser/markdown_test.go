package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/builder"
	"github.com/dgallion1/docgraph/internal/doctree"
)

func TestMarkdownParser_HeadingOutline(t *testing.T) {
	input := `# Subtitle A

Intro text.

## CHAPTER 1

Chapter text.

### Section A1

Body.
`
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Text != input {
		t.Error("expected the markdown source kept as page text")
	}

	want := []doctree.TOCEntry{
		{Level: 1, Title: "Subtitle A"},
		{Level: 2, Title: "CHAPTER 1"},
		{Level: 3, Title: "Section A1"},
	}
	got := doc.Pages[0].TOC
	if len(got) != len(want) {
		t.Fatalf("expected %d outline entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestMarkdownParser_HeadingsFollowPages(t *testing.T) {
	input := "# One\n\ntext\n\f# Two\n\nmore\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "paged.markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "paged" {
		t.Errorf("expected title %q, got %q", "paged", doc.Title)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if len(doc.Pages[0].TOC) != 1 || doc.Pages[0].TOC[0].Title != "One" {
		t.Errorf("page 1 outline: %+v", doc.Pages[0].TOC)
	}
	if len(doc.Pages[1].TOC) != 1 || doc.Pages[1].TOC[0].Title != "Two" {
		t.Errorf("page 2 outline: %+v", doc.Pages[1].TOC)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader("Just text.\n\nMore."), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].TOC) != 0 {
		t.Fatalf("expected one page without outline, got %+v", doc.Pages)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(doc.Pages))
	}
}

func TestMarkdownParser_InlineMarkupHeadings(t *testing.T) {
	input := "# Income **Tax**\nintro\n## See [Form 1040](https://www.irs.gov/f1040)\nbody\n### `§1` *Tax imposed*\nrates\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "irc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []doctree.TOCEntry{
		{Level: 1, Title: "Income **Tax**"},
		{Level: 2, Title: "See [Form 1040](https://www.irs.gov/f1040)"},
		{Level: 3, Title: "`§1` *Tax imposed*"},
	}
	got := doc.Pages[0].TOC
	if len(got) != len(want) {
		t.Fatalf("expected %d outline entries, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	tree, stats, err := builder.Build(context.Background(), doc.Title, doc.Pages, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Headings != 3 || tree.Len() != 4 {
		t.Fatalf("expected 3 headings and 4 nodes, got %d headings and %d nodes", stats.Headings, tree.Len())
	}
	if strings.Contains(tree.Root().Text, "body") {
		t.Errorf("expected section text off the root, got %q", tree.Root().Text)
	}
	top := tree.Children(tree.Root().ID)
	if len(top) != 1 || top[0].Title != "Income **Tax**" {
		t.Fatalf("unexpected top level %+v", top)
	}
	sub := tree.Children(top[0].ID)
	if len(sub) != 1 || !strings.Contains(sub[0].Text, "body") {
		t.Errorf("expected the linked heading to own its body, got %+v", sub)
	}
}

func TestMarkdownParser_SetextHeading(t *testing.T) {
	input := "CHAPTER 1 **Normal** taxes\n===\n\ntext\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "s.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	toc := doc.Pages[0].TOC
	if len(toc) != 1 || toc[0].Title != "CHAPTER 1 **Normal** taxes" || toc[0].Level != 1 {
		t.Errorf("unexpected outline %+v", toc)
	}
}
