package graphstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

// Relation kinds between a node and its children.
const (
	RelHasSection = "HAS_SECTION"
	RelHasChunk   = "HAS_CHUNK"
)

var (
	// ErrNotFound is returned for node ids the store does not know.
	ErrNotFound = errors.New("node not found")
	// ErrUnsupported is returned by backends without vector support.
	ErrUnsupported = errors.New("operation not supported by this graph backend")
	// ErrNoIndex is returned by VectorSearch when the label has no vector
	// index yet, as happens before the first document is embedded.
	ErrNoIndex = errors.New("vector index does not exist")
)

// NodeRecord is the persisted form of a section node.
type NodeRecord struct {
	ID       string `json:"id"`
	DocID    string `json:"doc_id"`
	ParentID string `json:"parent_id,omitempty"`
	Ordinal  int    `json:"level"`
	Label    string `json:"hierarchy"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Page     int    `json:"page_num"`
}

// Rank rebuilds the hierarchy rank from the stored label and ordinal.
func (r NodeRecord) Rank() hierarchy.Rank {
	if rank, ok := hierarchy.ByLabel(r.Label); ok {
		return rank
	}
	return hierarchy.Rank{Ordinal: r.Ordinal, Label: r.Label}
}

// EmbeddingInput is the text embedded for a node: its body, else its title,
// else a single space so the provider never sees an empty input.
func (r NodeRecord) EmbeddingInput() string {
	if strings.TrimSpace(r.Text) != "" {
		return r.Text
	}
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return " "
}

// Record converts a tree node to its persisted form.
func Record(docID string, n *doctree.Node) NodeRecord {
	return NodeRecord{
		ID:       n.ID,
		DocID:    docID,
		ParentID: n.ParentID,
		Ordinal:  n.Rank.Ordinal,
		Label:    n.Rank.Label,
		Title:    n.Title,
		Text:     n.Text,
		Page:     n.Page,
	}
}

// Hit is one vector search result.
type Hit struct {
	Score float64    `json:"score"`
	Node  NodeRecord `json:"node"`
}

// Store mirrors reconstructed trees into a graph. Upserts are idempotent by
// id so a node or edge may be written any number of times.
type Store interface {
	UpsertNode(ctx context.Context, rec NodeRecord) error
	UpsertEdge(ctx context.Context, parentID, childID, kind string) error
	SetEmbedding(ctx context.Context, id string, vec []float32) error
	EnsureVectorIndex(ctx context.Context, label string, dim int) error
	VectorSearch(ctx context.Context, label string, vec []float32, topK int) ([]Hit, error)
	PathToRoot(ctx context.Context, id string) ([]NodeRecord, error)
	Descendants(ctx context.Context, id string) ([]NodeRecord, error)
	NodesForDocument(ctx context.Context, docID string) ([]NodeRecord, error)
	Documents(ctx context.Context) ([]NodeRecord, error)
	DeleteDocument(ctx context.Context, docID string) (int, error)
	Close(ctx context.Context) error
}

// IndexName is the vector index name for a rank label.
func IndexName(label string) string {
	return "index_" + label
}

// PreOrder arranges the descendants of rootID depth first, each node before
// its children. Siblings keep their order in recs. Records whose parent is
// not reachable from rootID are appended in their original order.
func PreOrder(rootID string, recs []NodeRecord) []NodeRecord {
	children := make(map[string][]int, len(recs))
	for i, r := range recs {
		children[r.ParentID] = append(children[r.ParentID], i)
	}
	out := make([]NodeRecord, 0, len(recs))
	placed := make([]bool, len(recs))
	var visit func(parent string)
	visit = func(parent string) {
		for _, i := range children[parent] {
			if placed[i] {
				continue
			}
			placed[i] = true
			out = append(out, recs[i])
			visit(recs[i].ID)
		}
	}
	visit(rootID)
	for i, r := range recs {
		if !placed[i] {
			out = append(out, r)
		}
	}
	return out
}
