package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/docgraph/internal/builder"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/graphstore"
)

// fakeServer is an in-memory stand-in for the pathstore HTTP API.
type fakeServer struct {
	mu    sync.Mutex
	kv    map[string]json.RawMessage
	links int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/links" {
		f.links++
		w.WriteHeader(http.StatusOK)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	switch {
	case r.Method == http.MethodPut:
		var req struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.kv[key] = req.Value
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && strings.HasSuffix(key, "/*"):
		prefix := strings.TrimSuffix(key, "*")
		var keys []string
		for k := range f.kv {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		nodes := make([]Entry, 0, len(keys))
		for _, k := range keys {
			nodes = append(nodes, Entry{Key: k, Value: f.kv[k]})
		}
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
	case r.Method == http.MethodGet:
		v, ok := f.kv[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Entry{Key: key, Value: v})
	case r.Method == http.MethodDelete:
		delete(f.kv, key)
		if r.URL.Query().Get("children") == "true" {
			for k := range f.kv {
				if strings.HasPrefix(k, key+"/") {
					delete(f.kv, k)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeServer) {
	t.Helper()
	fake := &fakeServer{kv: make(map[string]json.RawMessage)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStore(NewClient(srv.URL, "key")), fake
}

func TestStore_TreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	sink := graphstore.NewTreeSink(s, "doc-1")

	pages := []doctree.Page{{Number: 1, Text: "CHAPTER 1\nPART I\n§1. Tax\n(a) General\nbody"}}
	tree, _, err := builder.Build(ctx, "Title 26", pages, sink)
	if err != nil {
		t.Fatal(err)
	}
	if fake.links != tree.Len()-1 {
		t.Errorf("expected %d links, got %d", tree.Len()-1, fake.links)
	}

	nodes, err := s.NodesForDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != tree.Len() {
		t.Errorf("expected %d nodes, got %d", tree.Len(), len(nodes))
	}

	var leaf *doctree.Node
	tree.Walk(func(n *doctree.Node, _ int) { leaf = n })
	path, err := s.PathToRoot(ctx, leaf.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := tree.PathToRoot(leaf.ID)
	if len(path) != len(want) {
		t.Fatalf("expected path of %d, got %d", len(want), len(path))
	}
	for i := range want {
		if path[i].ID != want[i].ID {
			t.Errorf("path[%d]: expected %q, got %q", i, want[i].Title, path[i].Title)
		}
	}

	desc, err := s.Descendants(ctx, tree.Root().ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(desc) != tree.Len()-1 {
		t.Errorf("expected %d descendants, got %d", tree.Len()-1, len(desc))
	}

	docs, err := s.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != tree.Root().ID {
		t.Errorf("expected the root listed as the document, got %+v", docs)
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	pages := []doctree.Page{{Number: 1, Text: "CHAPTER 1\n§1. Tax\nbody"}}
	tree, _, err := builder.Build(ctx, "doc", pages, graphstore.NewTreeSink(s, "d"))
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteDocument(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if n != tree.Len() {
		t.Errorf("expected %d deleted, got %d", tree.Len(), n)
	}
	if len(fake.kv) != 0 {
		t.Errorf("expected empty store, %d keys left", len(fake.kv))
	}
	if _, err := s.PathToRoot(ctx, tree.Root().ID); !errors.Is(err, graphstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_VectorOpsUnsupported(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureVectorIndex(ctx, "Section", 8); !errors.Is(err, graphstore.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := s.VectorSearch(ctx, "Section", []float32{1}, 2); !errors.Is(err, graphstore.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	err := c.PutNode(context.Background(), "a/b", NodeRequest{Value: 1})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status 500 error, got %v", err)
	}
}
