package hierarchy

import "fmt"

// Rank is a position in the fixed statutory outline. Ordinal is the only
// comparison key; several labels share an ordinal.
type Rank struct {
	Ordinal int    `json:"ordinal"`
	Label   string `json:"label"`
}

var (
	Document        = Rank{Ordinal: 0, Label: "Document"}
	Subtitle        = Rank{Ordinal: 1, Label: "Subtitle"}
	Chapter         = Rank{Ordinal: 2, Label: "Chapter"}
	Subchapter      = Rank{Ordinal: 3, Label: "Subchapter"}
	Part            = Rank{Ordinal: 4, Label: "Part"}
	Section         = Rank{Ordinal: 5, Label: "Section"}
	TableOfContents = Rank{Ordinal: 5, Label: "TableOfContents"}
	EditorialNotes  = Rank{Ordinal: 5, Label: "EditorialNotes"}
	SectionL1       = Rank{Ordinal: 6, Label: "SectionL1"}
	Amendments      = Rank{Ordinal: 6, Label: "Amendments"}
	SectionL2       = Rank{Ordinal: 7, Label: "SectionL2"}
	SectionL3       = Rank{Ordinal: 8, Label: "SectionL3"}
	SectionL4       = Rank{Ordinal: 9, Label: "SectionL4"}

	// Chunk sits below every heading rank.
	Chunk = Rank{Ordinal: 10, Label: "Chunk"}
)

// declaration order; ForLevel picks the first label for an ordinal.
var levels = []Rank{
	Document,
	Subtitle,
	Chapter,
	Subchapter,
	Part,
	Section,
	TableOfContents,
	EditorialNotes,
	SectionL1,
	Amendments,
	SectionL2,
	SectionL3,
	SectionL4,
	Chunk,
}

// Levels returns every known rank in declaration order.
func Levels() []Rank {
	out := make([]Rank, len(levels))
	copy(out, levels)
	return out
}

// ByLabel looks a rank up by its label (case-sensitive).
func ByLabel(label string) (Rank, bool) {
	for _, r := range levels {
		if r.Label == label {
			return r, true
		}
	}
	return Rank{}, false
}

// ForLevel maps a table-of-contents level to a rank. Levels below 1 clamp to
// Subtitle and levels above 9 clamp to SectionL4, so a TOC entry can never
// compete with the document root or with chunks.
func ForLevel(level int) Rank {
	if level < Subtitle.Ordinal {
		return Subtitle
	}
	if level > SectionL4.Ordinal {
		return SectionL4
	}
	for _, r := range levels {
		if r.Ordinal == level {
			return r
		}
	}
	return SectionL4
}

// Deeper reports whether r sits strictly below o in the outline.
func (r Rank) Deeper(o Rank) bool {
	return r.Ordinal > o.Ordinal
}

func (r Rank) IsChunk() bool {
	return r.Ordinal == Chunk.Ordinal
}

func (r Rank) String() string {
	return fmt.Sprintf("%s(%d)", r.Label, r.Ordinal)
}
