package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/graphstore/memstore"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/dgallion1/docgraph/internal/retrieval"
)

const testKey = "test-key"

const statute = "TITLE 26—INTERNAL REVENUE CODE\n" +
	"CHAPTER 1—NORMAL TAXES AND SURTAXES\n" +
	"PART I—TAX ON INDIVIDUALS\n" +
	"§1. Tax imposed\n" +
	"(a) Married individuals filing joint returns\n" +
	"There is hereby imposed on the taxable income of every married individual a tax.\n" +
	"\f§2. Definitions\n" +
	"The term surviving spouse means a taxpayer whose spouse died.\n"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		APIKey:             testKey,
		WorkerCount:        1,
		MaxQueueSize:       8,
		MaxConcurrentEmbed: 2,
		MaxUploadBytes:     1 << 20,
		JobTTL:             time.Hour,
		ChunkThreshold:     5000,
		ChunkSize:          1000,
		ChunkOverlap:       100,
	}
	store := memstore.New()
	e := embed.NewHashEmbedder(64)
	m := metrics.New()

	orch := pipeline.NewOrchestrator(cfg, store, e, m, nil)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := httptest.NewServer(NewServer(orch, retrieval.New(store, e, 0, nil), m, embed.NewStats(time.Minute), nil, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body io.Reader, contentType string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp, out
}

func upload(t *testing.T, srv *httptest.Server, filename, content string, fields map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return do(t, http.MethodPost, srv.URL+"/api/ingest", &buf, mw.FormDataContentType())
}

func waitForJob(t *testing.T, srv *httptest.Server, jobID string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, body := do(t, http.MethodGet, srv.URL+"/api/ingest/"+jobID+"/status", nil, "")
		status, _ := body["status"].(string)
		if pipeline.JobStatus(status).Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return ""
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestIngestSearchAndNavigate(t *testing.T) {
	srv := newTestServer(t)

	resp, body := upload(t, srv, "title26.txt", statute, map[string]string{"doc_id": "usc-26"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %v", resp.StatusCode, body)
	}
	if body["doc_id"] != "usc-26" {
		t.Errorf("expected doc id usc-26, got %v", body["doc_id"])
	}
	jobID, _ := body["job_id"].(string)
	if status := waitForJob(t, srv, jobID); status != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed, got %s", status)
	}

	// Documents.
	_, body = do(t, http.MethodGet, srv.URL+"/api/documents", nil, "")
	docs, _ := body["documents"].([]any)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %v", body)
	}

	// Search with expansion.
	resp, body = do(t, http.MethodGet, srv.URL+"/api/search?q=surviving+spouse&limit=3&expand=true", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	results, _ := body["results"].([]any)
	if len(results) == 0 || len(results) > 3 {
		t.Fatalf("expected 1..3 results, got %d", len(results))
	}
	top := results[0].(map[string]any)
	node := top["node"].(map[string]any)
	if node["title"] != "§2. Definitions" {
		t.Errorf("expected §2 as top hit, got %v", node["title"])
	}
	source, _ := top["source"].(string)
	if !strings.HasSuffix(source, "PART I—TAX ON INDIVIDUALS -> §2. Definitions (page 2)") {
		t.Errorf("unexpected source %q", source)
	}

	// Path and subtree of the hit.
	id, _ := node["id"].(string)
	_, body = do(t, http.MethodGet, srv.URL+"/api/nodes/"+id+"/path", nil, "")
	path, _ := body["path"].([]any)
	if len(path) != 4 {
		t.Errorf("expected path of 4, got %d", len(path))
	}

	root := path[0].(map[string]any)["id"].(string)
	_, body = do(t, http.MethodGet, srv.URL+"/api/nodes/"+root+"/subtree", nil, "")
	desc, _ := body["descendants"].([]any)
	if len(desc) != 5 {
		t.Errorf("expected 5 descendants of the root, got %d", len(desc))
	}

	// Delete, then the document is gone.
	resp, body = do(t, http.MethodDelete, srv.URL+"/api/documents/usc-26", nil, "")
	if resp.StatusCode != http.StatusOK || body["nodes_deleted"] != float64(6) {
		t.Errorf("expected 6 nodes deleted, got %d %v", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/documents/usc-26", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/nodes/"+id+"/path", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for deleted node, got %d", resp.StatusCode)
	}
}

func TestIngestRejections(t *testing.T) {
	srv := newTestServer(t)

	resp, body := upload(t, srv, "sheet.xlsx", "a,b", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, ".xlsx") {
		t.Errorf("unexpected error %q", msg)
	}

	resp, _ = upload(t, srv, "big.txt", strings.Repeat("x", 1<<20+10), nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversize upload, got %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/ingest/missing/status", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"q=+", http.StatusBadRequest},
		{"q=tax&limit=0", http.StatusBadRequest},
		{"q=tax&limit=abc", http.StatusBadRequest},
		{"q=tax", http.StatusOK},
	}
	for _, tt := range tests {
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/search?"+tt.query, nil, "")
		if resp.StatusCode != tt.want {
			t.Errorf("%q: expected %d, got %d", tt.query, tt.want, resp.StatusCode)
		}
	}
}

type unreachableStore struct{ *memstore.Store }

func (unreachableStore) VectorSearch(context.Context, string, []float32, int) ([]graphstore.Hit, error) {
	return nil, errors.New("connection refused")
}

func TestSearchStoreFailure(t *testing.T) {
	cfg := config.Config{APIKey: testKey, WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	store := memstore.New()
	e := embed.NewHashEmbedder(16)
	orch := pipeline.NewOrchestrator(cfg, store, e, nil, nil)
	r := retrieval.New(unreachableStore{store}, e, 0, nil)
	srv := httptest.NewServer(NewServer(orch, r, nil, nil, nil, cfg))
	t.Cleanup(srv.Close)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/search?q=tax", nil, "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 when the store is down, got %d (%v)", resp.StatusCode, body)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/stats/embeddings", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["embedder"] != "hash:64" {
		t.Errorf("expected hash:64, got %v", body["embedder"])
	}

	m, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Body.Close()
	text, _ := io.ReadAll(m.Body)
	if !strings.Contains(string(text), "docgraph_queue_depth") {
		t.Error("expected docgraph metrics in exposition")
	}
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{graphstore.ErrNotFound, http.StatusNotFound},
		{graphstore.ErrUnsupported, http.StatusNotImplemented},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		storeError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"title26.pdf", "title26.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\docs\irc.pdf`, "irc.pdf"},
		{"..", "unnamed"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
