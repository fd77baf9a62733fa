package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

var (
	// titleStyle for document titles and headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// dimStyle for ids, pages and previews
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// rankStyle for rank labels
	rankStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle for job summaries
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)
)

type outlineOptions struct {
	MaxDepth int  // 0 prints every level
	ShowText bool // one-line preview of each body
}

// renderOutline prints the tree indented by depth, one node per line.
func renderOutline(w io.Writer, tree *doctree.Tree, opts outlineOptions) {
	tree.Walk(func(n *doctree.Node, depth int) {
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			return
		}
		indent := strings.Repeat("  ", depth)
		if depth == 0 {
			fmt.Fprintf(w, "%s\n", titleStyle.Render(n.Title))
			return
		}
		title := n.Title
		if n.Rank.IsChunk() {
			title = dimStyle.Render(fmt.Sprintf("%d chars", len(n.Text)))
		}
		fmt.Fprintf(w, "%s%s %s %s\n", indent, rankStyle.Render(n.Rank.Label), title, dimStyle.Render(fmt.Sprintf("p.%d", n.Page)))
		if opts.ShowText {
			if p := preview(n.Text, 80); p != "" {
				fmt.Fprintf(w, "%s  %s\n", indent, dimStyle.Render(p))
			}
		}
	})
}

type hitView struct {
	Score  float64
	Node   graphstore.NodeRecord
	Source string
}

func renderHits(w io.Writer, hits []hitView) {
	if len(hits) == 0 {
		fmt.Fprintln(w, warnStyle.Render("no matches"))
		return
	}
	for i, h := range hits {
		title := h.Node.Title
		if title == "" {
			title = preview(h.Node.Text, 60)
		}
		fmt.Fprintf(w, "%2d. %s %s %s\n", i+1,
			successStyle.Render(fmt.Sprintf("%.3f", h.Score)),
			rankStyle.Render(h.Node.Label),
			title,
		)
		if h.Source != "" {
			fmt.Fprintf(w, "    %s\n", dimStyle.Render(h.Source))
		}
		fmt.Fprintf(w, "    %s\n", dimStyle.Render("id "+h.Node.ID))
	}
}

// renderNodes prints records indented by their rank ordinal relative to the
// shallowest record in the list.
func renderNodes(w io.Writer, nodes []graphstore.NodeRecord) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, warnStyle.Render("no nodes"))
		return
	}
	base := nodes[0].Ordinal
	for _, n := range nodes {
		base = min(base, n.Ordinal)
	}
	for _, n := range nodes {
		title := n.Title
		if title == "" {
			title = preview(n.Text, 60)
		}
		fmt.Fprintf(w, "%s%s %s %s\n",
			strings.Repeat("  ", n.Ordinal-base),
			rankStyle.Render(n.Label),
			title,
			dimStyle.Render(fmt.Sprintf("p.%d %s", n.Page, n.ID)),
		)
	}
}

func renderJob(w io.Writer, snap pipeline.JobSnapshot) {
	status := successStyle.Render(string(snap.Status))
	switch snap.Status {
	case pipeline.StatusFailed:
		status = errorStyle.Render(string(snap.Status))
	case pipeline.StatusPartial, pipeline.StatusDupSkipped:
		status = warnStyle.Render(string(snap.Status))
	}
	p := snap.Progress
	lines := []string{
		fmt.Sprintf("%s %s  %s", dimStyle.Render("File:"), snap.Filename, status),
		fmt.Sprintf("%s %s", dimStyle.Render("Doc:"), snap.DocID),
		fmt.Sprintf("%s %d  %s %d  %s %d",
			dimStyle.Render("Pages:"), p.Pages,
			dimStyle.Render("Headings:"), p.Headings,
			dimStyle.Render("Chunks:"), p.ChunksCreated),
		fmt.Sprintf("%s %d/%d", dimStyle.Render("Embedded:"), p.NodesEmbedded, p.NodesToEmbed),
	}
	for _, e := range p.Errors {
		lines = append(lines, errorStyle.Render(e))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

// preview collapses whitespace and cuts s to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
