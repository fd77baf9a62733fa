package hierarchy

import (
	"regexp"
	"strings"
)

type rule struct {
	rank  Rank
	match func(raw, lower string) bool
}

func contains(marker string, r Rank) rule {
	return rule{rank: r, match: func(_, lower string) bool {
		return strings.Contains(lower, marker)
	}}
}

func pattern(expr string, r Rank) rule {
	re := regexp.MustCompile(expr)
	return rule{rank: r, match: func(raw, _ string) bool {
		return re.MatchString(raw)
	}}
}

// Evaluated top to bottom, first match wins. "subchapter" must precede
// "chapter" since every subchapter heading also contains "chapter".
var rules = []rule{
	contains("subtitle", Subtitle),
	contains("subchapter", Subchapter),
	contains("chapter", Chapter),
	contains("part", Part),
	contains("§", Section),
	contains("table of contents", TableOfContents),
	contains("editorial notes", EditorialNotes),
	contains("amendments", Amendments),
	pattern(`^\([a-z]\) [A-Z0-9]+`, SectionL1),
	pattern(`^\(\d+\) [A-Z0-9]+`, SectionL2),
	pattern(`^\([A-Z]\) [A-Z0-9]+`, SectionL3),
	pattern(`^\([ivx]+\) `, SectionL4),
	contains("chunk", Chunk),
}

// Classify maps a raw heading to a rank. When no rule matches it returns
// Document and false; callers decide whether that is worth a warning.
func Classify(title string) (Rank, bool) {
	raw := strings.TrimSpace(title)
	lower := strings.ToLower(raw)
	for _, r := range rules {
		if r.match(raw, lower) {
			return r.rank, true
		}
	}
	return Document, false
}
