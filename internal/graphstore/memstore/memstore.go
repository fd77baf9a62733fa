package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dgallion1/docgraph/internal/graphstore"
)

// Store is an in-memory graph with brute-force cosine search. It backs the
// CLI dry runs and tests, and serves when no graph database is configured.
type Store struct {
	mu       sync.RWMutex
	order    []string
	nodes    map[string]graphstore.NodeRecord
	parent   map[string]string
	kind     map[string]string
	children map[string][]string
	vectors  map[string][]float32
	indexes  map[string]int
}

func New() *Store {
	return &Store{
		nodes:    make(map[string]graphstore.NodeRecord),
		parent:   make(map[string]string),
		kind:     make(map[string]string),
		children: make(map[string][]string),
		vectors:  make(map[string][]float32),
		indexes:  make(map[string]int),
	}
}

func (s *Store) UpsertNode(_ context.Context, rec graphstore.NodeRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert node: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.nodes[rec.ID] = rec
	return nil
}

func (s *Store) UpsertEdge(_ context.Context, parentID, childID, kind string) error {
	if parentID == "" || childID == "" {
		return fmt.Errorf("upsert edge: empty endpoint")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.parent[childID]; ok {
		if old == parentID {
			s.kind[childID] = kind
			return nil
		}
		s.children[old] = remove(s.children[old], childID)
	}
	s.parent[childID] = parentID
	s.kind[childID] = kind
	s.children[parentID] = append(s.children[parentID], childID)
	return nil
}

func (s *Store) SetEmbedding(_ context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("set embedding %s: %w", id, graphstore.ErrNotFound)
	}
	if dim, ok := s.indexes[rec.Label]; ok && dim != len(vec) {
		return fmt.Errorf("set embedding %s: dimension %d, index %s expects %d", id, len(vec), graphstore.IndexName(rec.Label), dim)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.vectors[id] = cp
	return nil
}

func (s *Store) EnsureVectorIndex(_ context.Context, label string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("ensure vector index %s: invalid dimension %d", label, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[label]; !ok {
		s.indexes[label] = dim
	}
	return nil
}

func (s *Store) VectorSearch(_ context.Context, label string, vec []float32, topK int) ([]graphstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.indexes[label]; !ok {
		return nil, fmt.Errorf("vector search %s: %w", graphstore.IndexName(label), graphstore.ErrNoIndex)
	}
	if topK <= 0 {
		topK = 2
	}

	var hits []graphstore.Hit
	for _, id := range s.order {
		rec := s.nodes[id]
		v, ok := s.vectors[id]
		if !ok || rec.Label != label {
			continue
		}
		hits = append(hits, graphstore.Hit{Score: cosine(vec, v), Node: rec})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) PathToRoot(_ context.Context, id string) ([]graphstore.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("path %s: %w", id, graphstore.ErrNotFound)
	}
	var path []graphstore.NodeRecord
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; cur = s.parent[cur] {
		seen[cur] = true
		rec, ok := s.nodes[cur]
		if !ok {
			break
		}
		path = append(path, rec)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (s *Store) Descendants(_ context.Context, id string) ([]graphstore.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("descendants %s: %w", id, graphstore.ErrNotFound)
	}
	var out []graphstore.NodeRecord
	var walk func(string)
	walk = func(pid string) {
		for _, cid := range s.children[pid] {
			if rec, ok := s.nodes[cid]; ok {
				out = append(out, rec)
			}
			walk(cid)
		}
	}
	walk(id)
	return out, nil
}

func (s *Store) NodesForDocument(_ context.Context, docID string) ([]graphstore.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graphstore.NodeRecord
	for _, id := range s.order {
		if rec := s.nodes[id]; rec.DocID == docID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Documents returns the root node of every stored document.
func (s *Store) Documents(_ context.Context) ([]graphstore.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graphstore.NodeRecord
	for _, id := range s.order {
		if rec := s.nodes[id]; rec.Ordinal == 0 && rec.DocID != "" {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteDocument removes every node of a document and its edges.
func (s *Store) DeleteDocument(_ context.Context, docID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if s.nodes[id].DocID != docID {
			kept = append(kept, id)
			continue
		}
		if p, ok := s.parent[id]; ok {
			s.children[p] = remove(s.children[p], id)
		}
		delete(s.nodes, id)
		delete(s.parent, id)
		delete(s.kind, id)
		delete(s.children, id)
		delete(s.vectors, id)
		deleted++
	}
	s.order = kept
	return deleted, nil
}

func (s *Store) Close(context.Context) error {
	return nil
}

// EdgeCount returns the number of parent/child edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parent)
}

// EdgeKind returns the relation kind linking childID to its parent.
func (s *Store) EdgeKind(childID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind[childID]
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
