package pathstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgallion1/docgraph/internal/graphstore"
)

// Key layout under the docgraph namespace:
//
//	docgraph/nodes/<id>                  node record
//	docgraph/children/<parent>/<child>   edge {id, kind}
//	docgraph/members/<doc>/<id>          node record, per document
//	docgraph/roots/<doc>                 root record
const namespace = "docgraph"

func nodeKey(id string) string             { return namespace + "/nodes/" + id }
func childPrefix(id string) string         { return namespace + "/children/" + id }
func memberPrefix(docID string) string     { return namespace + "/members/" + docID }
func rootKey(docID string) string          { return namespace + "/roots/" + docID }
func childKey(parent, child string) string { return childPrefix(parent) + "/" + child }

type edgeValue struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Store keeps section trees in pathstore. It has no vector support, so the
// embedding and search operations return graphstore.ErrUnsupported.
type Store struct {
	client *Client
}

var _ graphstore.Store = (*Store)(nil)

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) UpsertNode(ctx context.Context, rec graphstore.NodeRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert node: empty id")
	}
	req := NodeRequest{Value: rec, Source: "docgraph:" + rec.DocID}
	if err := s.client.PutNode(ctx, nodeKey(rec.ID), req); err != nil {
		return err
	}
	if rec.DocID == "" {
		return nil
	}
	if err := s.client.PutNode(ctx, memberPrefix(rec.DocID)+"/"+rec.ID, req); err != nil {
		return err
	}
	if rec.Ordinal == 0 {
		return s.client.PutNode(ctx, rootKey(rec.DocID), req)
	}
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, parentID, childID, kind string) error {
	if parentID == "" || childID == "" {
		return fmt.Errorf("upsert edge: empty endpoint")
	}
	err := s.client.PutNode(ctx, childKey(parentID, childID), NodeRequest{
		Value: edgeValue{ID: childID, Kind: kind},
	})
	if err != nil {
		return err
	}
	return s.client.PutLink(ctx, LinkRequest{
		From:    nodeKey(parentID),
		To:      nodeKey(childID),
		Weight:  1,
		Summary: kind,
	})
}

func (s *Store) SetEmbedding(context.Context, string, []float32) error {
	return graphstore.ErrUnsupported
}

func (s *Store) EnsureVectorIndex(context.Context, string, int) error {
	return graphstore.ErrUnsupported
}

func (s *Store) VectorSearch(context.Context, string, []float32, int) ([]graphstore.Hit, error) {
	return nil, graphstore.ErrUnsupported
}

func (s *Store) get(ctx context.Context, id string) (graphstore.NodeRecord, error) {
	var rec graphstore.NodeRecord
	e, err := s.client.GetNode(ctx, nodeKey(id))
	if errors.Is(err, ErrNotFound) {
		return rec, fmt.Errorf("node %s: %w", id, graphstore.ErrNotFound)
	}
	if err != nil {
		return rec, err
	}
	err = e.Decode(&rec)
	return rec, err
}

func (s *Store) PathToRoot(ctx context.Context, id string) ([]graphstore.NodeRecord, error) {
	var path []graphstore.NodeRecord
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; {
		seen[cur] = true
		rec, err := s.get(ctx, cur)
		if err != nil {
			if len(path) > 0 && errors.Is(err, graphstore.ErrNotFound) {
				break
			}
			return nil, err
		}
		path = append(path, rec)
		cur = rec.ParentID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (s *Store) Descendants(ctx context.Context, id string) ([]graphstore.NodeRecord, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	var out []graphstore.NodeRecord
	var walk func(string) error
	walk = func(pid string) error {
		entries, err := s.client.ListChildren(ctx, childPrefix(pid), 0)
		if err != nil {
			return err
		}
		for _, e := range entries {
			var edge edgeValue
			if err := e.Decode(&edge); err != nil {
				return err
			}
			rec, err := s.get(ctx, edge.ID)
			if errors.Is(err, graphstore.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, rec)
			if err := walk(edge.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id); err != nil {
		return nil, fmt.Errorf("descendants %s: %w", id, err)
	}
	return out, nil
}

func (s *Store) NodesForDocument(ctx context.Context, docID string) ([]graphstore.NodeRecord, error) {
	entries, err := s.client.ListChildren(ctx, memberPrefix(docID), 0)
	if err != nil {
		return nil, err
	}
	out := make([]graphstore.NodeRecord, 0, len(entries))
	for _, e := range entries {
		var rec graphstore.NodeRecord
		if err := e.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out, nil
}

func (s *Store) Documents(ctx context.Context) ([]graphstore.NodeRecord, error) {
	entries, err := s.client.ListChildren(ctx, namespace+"/roots", 0)
	if err != nil {
		return nil, err
	}
	out := make([]graphstore.NodeRecord, 0, len(entries))
	for _, e := range entries {
		var rec graphstore.NodeRecord
		if err := e.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) DeleteDocument(ctx context.Context, docID string) (int, error) {
	nodes, err := s.NodesForDocument(ctx, docID)
	if err != nil {
		return 0, err
	}
	for _, n := range nodes {
		if err := s.client.DeleteNode(ctx, childPrefix(n.ID), true); err != nil {
			return 0, err
		}
		if err := s.client.DeleteNode(ctx, nodeKey(n.ID), false); err != nil {
			return 0, err
		}
	}
	if err := s.client.DeleteNode(ctx, memberPrefix(docID), true); err != nil {
		return 0, err
	}
	if err := s.client.DeleteNode(ctx, rootKey(docID), false); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (s *Store) Close(context.Context) error {
	s.client.Close()
	return nil
}
