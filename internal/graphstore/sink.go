package graphstore

import (
	"context"
	"fmt"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// TreeSink writes flushed tree nodes, and the edge to their parent, into a
// Store. It satisfies builder.Sink.
type TreeSink struct {
	Store Store
	DocID string

	// OnFlush, when set, is called after each successful flush.
	OnFlush func(n *doctree.Node)
}

func NewTreeSink(store Store, docID string) *TreeSink {
	return &TreeSink{Store: store, DocID: docID}
}

func (s *TreeSink) FlushNode(ctx context.Context, n *doctree.Node) error {
	if err := s.Store.UpsertNode(ctx, Record(s.DocID, n)); err != nil {
		return fmt.Errorf("upsert node %s: %w", n.ID, err)
	}
	if n.ParentID != "" {
		kind := RelHasSection
		if n.Rank.IsChunk() {
			kind = RelHasChunk
		}
		if err := s.Store.UpsertEdge(ctx, n.ParentID, n.ID, kind); err != nil {
			return fmt.Errorf("upsert edge %s->%s: %w", n.ParentID, n.ID, err)
		}
	}
	if s.OnFlush != nil {
		s.OnFlush(n)
	}
	return nil
}
