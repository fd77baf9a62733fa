// Package retrieval answers questions against persisted section trees:
// vector search over the per-rank indexes, then ancestor and descendant
// expansion of each hit.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

const DefaultTopKPerLabel = 2

// Retriever reads from a graph store using query embeddings.
type Retriever struct {
	Store        graphstore.Store
	Embedder     embed.Embedder
	TopKPerLabel int
	Log          *slog.Logger
}

func New(store graphstore.Store, embedder embed.Embedder, topK int, log *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopKPerLabel
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Retriever{Store: store, Embedder: embedder, TopKPerLabel: topK, Log: log}
}

// Search embeds the question once and queries every rank label's index.
// Hits are merged, sorted by score descending and cut to limit when limit
// is positive. Labels whose index does not exist yet are skipped; any other
// store error fails the search.
func (r *Retriever) Search(ctx context.Context, question string, limit int) ([]graphstore.Hit, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("search: empty question")
	}
	vec, err := r.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var hits []graphstore.Hit
	seen := make(map[string]bool)
	for _, rank := range hierarchy.Levels() {
		found, err := r.Store.VectorSearch(ctx, rank.Label, vec, r.TopKPerLabel)
		if errors.Is(err, graphstore.ErrNoIndex) {
			r.Log.Debug("skipping index", "index", graphstore.IndexName(rank.Label))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", rank.Label, err)
		}
		for _, h := range found {
			if seen[h.Node.ID] {
				continue
			}
			seen[h.Node.ID] = true
			hits = append(hits, h)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Path returns the ancestor chain of id, root first.
func (r *Retriever) Path(ctx context.Context, id string) ([]graphstore.NodeRecord, error) {
	return r.Store.PathToRoot(ctx, id)
}

// Subtree returns every descendant of id in pre-order.
func (r *Retriever) Subtree(ctx context.Context, id string) ([]graphstore.NodeRecord, error) {
	return r.Store.Descendants(ctx, id)
}

// Context is a search hit with its surroundings in the tree.
type Context struct {
	Hit         graphstore.Hit          `json:"hit"`
	Path        []graphstore.NodeRecord `json:"path"`
	Descendants []graphstore.NodeRecord `json:"descendants"`
}

// Expand loads the ancestor chain and descendants of a hit.
func (r *Retriever) Expand(ctx context.Context, hit graphstore.Hit) (Context, error) {
	path, err := r.Path(ctx, hit.Node.ID)
	if err != nil {
		return Context{}, fmt.Errorf("expand %s: %w", hit.Node.ID, err)
	}
	desc, err := r.Subtree(ctx, hit.Node.ID)
	if err != nil {
		return Context{}, fmt.Errorf("expand %s: %w", hit.Node.ID, err)
	}
	return Context{Hit: hit, Path: path, Descendants: desc}, nil
}

// Source renders the ancestor titles as "A -> B -> C", followed by the
// page of the hit. Chunks carry no title and are left out.
func (c Context) Source() string {
	titles := make([]string, 0, len(c.Path))
	for _, n := range c.Path {
		if n.Title != "" {
			titles = append(titles, n.Title)
		}
	}
	s := strings.Join(titles, " -> ")
	if c.Hit.Node.Page > 0 {
		s += " (page " + strconv.Itoa(c.Hit.Node.Page) + ")"
	}
	return s
}

// Text is the hit body followed by its descendants' text, in tree order.
func (c Context) Text() string {
	var b strings.Builder
	b.WriteString(c.Hit.Node.Text)
	for _, d := range c.Descendants {
		b.WriteString(d.Text)
	}
	return b.String()
}
