package locate

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

// TOCLocator places externally supplied TOC entries in the page text. Each
// entry matches the first line, after any earlier hit for the same title, that
// starts with optional markdown/table markers followed by the title. Runs of
// whitespace in the title match any whitespace in the text.
type TOCLocator struct {
	OnMiss MissFunc
}

func (l *TOCLocator) Locate(page doctree.Page) Result {
	var found []Match
	searchFrom := make(map[string]int)

	for _, entry := range page.TOC {
		title := strings.TrimSpace(entry.Title)
		re := titlePattern(title)
		if re == nil {
			l.miss(page.Number, entry.Title)
			continue
		}

		offset := searchFrom[title]
		loc := re.FindStringIndex(page.Text[offset:])
		if loc == nil {
			l.miss(page.Number, title)
			continue
		}
		start, end := offset+loc[0], offset+loc[1]
		searchFrom[title] = end

		found = append(found, Match{
			Start: start,
			End:   end,
			Rank:  hierarchy.ForLevel(entry.Level),
			Title: title,
		})
	}

	return assemble(page, found, l.OnMiss)
}

func (l *TOCLocator) miss(page int, title string) {
	if l.OnMiss != nil {
		l.OnMiss(page, title)
	}
}

func titlePattern(title string) *regexp.Regexp {
	words := strings.Fields(title)
	if len(words) == 0 {
		return nil
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(`(?m)^[#*| \t]*` + strings.Join(words, `\s+`) + `.*(?:\n|$)`)
	if err != nil {
		return nil
	}
	return re
}
