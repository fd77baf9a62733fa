package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/dgallion1/docgraph/internal/builder"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/graphstore/memstore"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

func indexTree(t *testing.T, store graphstore.Store, e embed.Embedder, pages []doctree.Page) *doctree.Tree {
	t.Helper()
	ctx := context.Background()
	tree, _, err := builder.Build(ctx, "Title 26", pages, graphstore.NewTreeSink(store, "doc"))
	if err != nil {
		t.Fatal(err)
	}
	for _, rank := range hierarchy.Levels() {
		if err := store.EnsureVectorIndex(ctx, rank.Label, e.Dimension()); err != nil {
			t.Fatal(err)
		}
	}
	for _, n := range tree.Nodes() {
		rec := graphstore.Record("doc", n)
		vec, err := e.Embed(ctx, rec.EmbeddingInput())
		if err != nil {
			t.Fatal(err)
		}
		if err := store.SetEmbedding(ctx, n.ID, vec); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func TestSearchAndExpand(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := embed.NewHashEmbedder(128)
	pages := []doctree.Page{{Number: 4, Text: "CHAPTER 1\nPART I\n§1. Tax imposed\n" +
		"(a) Married individuals\nA tax is imposed on the taxable income of married individuals.\n" +
		"§2. Definitions\nThe term employer means any person for whom services are performed.\n"}}
	tree := indexTree(t, store, e, pages)

	r := New(store, e, 0, nil)
	hits, err := r.Search(ctx, "tax imposed on the taxable income of married individuals", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if len(hits) > 3 {
		t.Errorf("expected at most 3 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Error("hits not sorted by score")
		}
	}
	if hits[0].Node.Title != "(a) Married individuals" {
		t.Errorf("expected the married individuals paragraph first, got %q", hits[0].Node.Title)
	}

	c, err := r.Expand(ctx, hits[0])
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.Source(), "Title 26 -> CHAPTER 1 -> PART I -> §1. Tax imposed -> (a) Married individuals (page 4)"; got != want {
		t.Errorf("source:\n got %q\nwant %q", got, want)
	}
	if len(c.Path) != len(tree.PathToRoot(hits[0].Node.ID)) {
		t.Errorf("unexpected path length %d", len(c.Path))
	}
}

func TestSearch_PerLabelLimit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := embed.NewHashEmbedder(32)
	pages := []doctree.Page{{Number: 1, Text: "§1. One\na\n§2. Two\nb\n§3. Three\nc\n§4. Four\nd\n"}}
	indexTree(t, store, e, pages)

	hits, err := New(store, e, 2, nil).Search(ctx, "section", 0)
	if err != nil {
		t.Fatal(err)
	}
	sections := 0
	for _, h := range hits {
		if h.Node.Label == hierarchy.Section.Label {
			sections++
		}
	}
	if sections != 2 {
		t.Errorf("expected 2 Section hits, got %d", sections)
	}
}

func TestSearch_Errors(t *testing.T) {
	r := New(memstore.New(), embed.NewHashEmbedder(8), 2, nil)
	if _, err := r.Search(context.Background(), "  ", 5); err == nil {
		t.Error("expected error for empty question")
	}
	hits, err := r.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("expected missing indexes to be skipped, got %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

type unsupportedStore struct{ graphstore.Store }

func (unsupportedStore) VectorSearch(context.Context, string, []float32, int) ([]graphstore.Hit, error) {
	return nil, graphstore.ErrUnsupported
}

func TestSearch_Unsupported(t *testing.T) {
	r := New(unsupportedStore{}, embed.NewHashEmbedder(8), 2, nil)
	if _, err := r.Search(context.Background(), "x", 1); !errors.Is(err, graphstore.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestContextSource_SkipsChunkTitles(t *testing.T) {
	c := Context{
		Hit: graphstore.Hit{Node: graphstore.NodeRecord{Page: 0}},
		Path: []graphstore.NodeRecord{
			{Title: "Doc"}, {Title: "§1."}, {Title: ""},
		},
	}
	if got := c.Source(); got != "Doc -> §1." {
		t.Errorf("unexpected source %q", got)
	}
}

type downStore struct{ graphstore.Store }

func (downStore) VectorSearch(context.Context, string, []float32, int) ([]graphstore.Hit, error) {
	return nil, errors.New("dial tcp 127.0.0.1:7687: connection refused")
}

func TestSearch_StoreFailure(t *testing.T) {
	r := New(downStore{}, embed.NewHashEmbedder(8), 2, nil)
	hits, err := r.Search(context.Background(), "surviving spouse", 5)
	if err == nil {
		t.Fatalf("expected the store error, got %d hits", len(hits))
	}
	if errors.Is(err, graphstore.ErrNoIndex) || errors.Is(err, graphstore.ErrUnsupported) {
		t.Errorf("store failure misreported as %v", err)
	}
}
