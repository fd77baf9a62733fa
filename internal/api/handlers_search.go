package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/docgraph/internal/graphstore"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

type searchResult struct {
	Score       float64                 `json:"score"`
	Node        graphstore.NodeRecord   `json:"node"`
	Source      string                  `json:"source,omitempty"`
	Path        []graphstore.NodeRecord `json:"path,omitempty"`
	Descendants []graphstore.NodeRecord `json:"descendants,omitempty"`
}

// handleSearch runs a question against every rank index. With expand=true
// each hit also carries its ancestor chain, descendants and a citation.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		jsonError(w, "search unavailable: no embedder configured", http.StatusServiceUnavailable)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxSearchLimit)
	}
	expand, _ := strconv.ParseBool(r.URL.Query().Get("expand"))

	hits, err := s.retriever.Search(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, graphstore.ErrUnsupported) {
			jsonError(w, "graph backend does not support vector search", http.StatusNotImplemented)
			return
		}
		s.log.Error("search failed", "error", err)
		jsonError(w, "search failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	results := make([]searchResult, 0, len(hits))
	for _, h := range hits {
		res := searchResult{Score: h.Score, Node: h.Node}
		if expand {
			c, err := s.retriever.Expand(r.Context(), h)
			if err != nil {
				s.log.Warn("expand failed", "node_id", h.Node.ID, "error", err)
			} else {
				res.Source = c.Source()
				res.Path = c.Path
				res.Descendants = c.Descendants
			}
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": results,
	})
}
