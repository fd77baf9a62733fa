package locate

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

// headingLine matches the known statutory heading shapes at the start of a
// line. The heading runs to the end of that line.
var headingLine = regexp.MustCompile(`(?m)^(?:` + strings.Join([]string{
	`Subtitle [A-Z]`,
	`CHAPTER \d+`,
	`Subchapter [A-Z]`,
	`PART [IVXLCDM]+`,
	`§\s?\d+\w*\.`,
	`TABLE OF CONTENTS`,
	`EDITORIAL NOTES`,
	`AMENDMENTS`,
	`\([a-z]\) [A-Z0-9]+`,
	`\(\d+\) [A-Z0-9]+`,
	`\([A-Z]\) [A-Z0-9]+`,
	`\([ivx]+\) `,
}, "|") + `).*(?:\n|$)`)

// PatternLocator finds headings in raw text when the source has no outline.
type PatternLocator struct {
	OnMiss MissFunc
}

func (l *PatternLocator) Locate(page doctree.Page) Result {
	var found []Match
	for _, loc := range headingLine.FindAllStringIndex(page.Text, -1) {
		title := strings.TrimSpace(page.Text[loc[0]:loc[1]])
		rank, ok := hierarchy.Classify(title)
		if !ok {
			if l.OnMiss != nil {
				l.OnMiss(page.Number, title)
			}
			continue
		}
		found = append(found, Match{
			Start: loc[0],
			End:   loc[1],
			Rank:  rank,
			Title: title,
		})
	}
	return assemble(page, found, l.OnMiss)
}
