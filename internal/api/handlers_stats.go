package api

import (
	"net/http"
)

func (s *Server) handleEmbeddingStats(w http.ResponseWriter, r *http.Request) {
	e := s.orchestrator.Embedder()
	if e == nil || s.embedStats == nil {
		jsonError(w, "embedding stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"embedder":  e.Name(),
		"dimension": e.Dimension(),
		"stats":     s.embedStats.Snapshot(),
	})
}
