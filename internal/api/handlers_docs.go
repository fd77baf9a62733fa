package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists the root node of every stored document.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.orchestrator.Store().Documents(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []graphstore.NodeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument deletes a document and every node under it.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	n, err := s.orchestrator.DeleteDocument(r.Context(), docID)
	switch {
	case errors.Is(err, pipeline.ErrDocumentBusy):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	case n == 0:
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":        docID,
		"nodes_deleted": n,
	})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	path, err := s.orchestrator.Store().PathToRoot(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleSubtree(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.orchestrator.Store().Descendants(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		storeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []graphstore.NodeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"descendants": nodes})
}

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graphstore.ErrNotFound):
		jsonError(w, "node not found", http.StatusNotFound)
	case errors.Is(err, graphstore.ErrUnsupported):
		jsonError(w, err.Error(), http.StatusNotImplemented)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
