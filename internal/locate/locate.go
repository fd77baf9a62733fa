package locate

import (
	"sort"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

// Match is one heading found on a page. Start and End are byte offsets of the
// heading line in the page text; Text is the body that follows it, up to the
// next heading or the end of the page.
type Match struct {
	Start int
	End   int
	Rank  hierarchy.Rank
	Title string
	Text  string
}

// Result is the outcome of locating headings on one page. Before holds the
// text preceding the first match (the whole page when nothing matched).
type Result struct {
	Before  string
	Matches []Match
}

// Locator finds heading occurrences within a page.
type Locator interface {
	Locate(page doctree.Page) Result
}

// MissFunc is told about heading candidates that were dropped.
type MissFunc func(page int, title string)

// Auto uses the TOC strategy when the page carries TOC candidates and the
// pattern strategy otherwise.
type Auto struct {
	TOC     *TOCLocator
	Pattern *PatternLocator
}

// New returns an Auto locator reporting dropped candidates to onMiss.
func New(onMiss MissFunc) *Auto {
	return &Auto{
		TOC:     &TOCLocator{OnMiss: onMiss},
		Pattern: &PatternLocator{OnMiss: onMiss},
	}
}

func (a *Auto) Locate(page doctree.Page) Result {
	if len(page.TOC) > 0 {
		return a.TOC.Locate(page)
	}
	return a.Pattern.Locate(page)
}

// assemble orders matches by offset, drops overlapping ones (first wins,
// the rest are reported to onMiss) and slices the page text into
// before/after segments.
func assemble(page doctree.Page, found []Match, onMiss MissFunc) Result {
	text := page.Text
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Start < found[j].Start
	})

	kept := found[:0]
	for _, m := range found {
		if len(kept) > 0 && m.Start < kept[len(kept)-1].End {
			if onMiss != nil {
				onMiss(page.Number, m.Title)
			}
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return Result{Before: text}
	}

	for i := range kept {
		next := len(text)
		if i+1 < len(kept) {
			next = kept[i+1].Start
		}
		kept[i].Text = text[kept[i].End:next]
	}
	return Result{
		Before:  text[:kept[0].Start],
		Matches: kept,
	}
}
