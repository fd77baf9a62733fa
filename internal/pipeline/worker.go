package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docgraph/internal/builder"
	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/hierarchy"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/parser"
)

// WorkerConfig holds the per-job tuning knobs.
type WorkerConfig struct {
	Chunking chunker.Config
	// Tokenizer sizes chunks; nil means the default BPE tokenizer.
	Tokenizer          chunker.Tokenizer
	MaxConcurrentEmbed int
	PDFFallback        bool
}

// Worker processes a single document job.
type Worker struct {
	store    graphstore.Store
	embedder embed.Embedder
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      WorkerConfig

	// dedup, when set, skips content already built into another document.
	dedup   *JobStore
	backoff func(int) time.Duration
}

// NewWorker builds a worker. A nil embedder leaves nodes unembedded.
func NewWorker(store graphstore.Store, embedder embed.Embedder, m *metrics.Metrics, log *slog.Logger, cfg WorkerConfig) *Worker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 1
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		backoff:  Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	status := w.process(ctx, job, log)
	w.metrics.JobFinished(string(status))
	log.Info("job finished", "status", status)
}

func (w *Worker) process(ctx context.Context, job *Job, log *slog.Logger) JobStatus {
	fail := func(phase string, err error) JobStatus {
		log.Error(phase+" failed", "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		return StatusFailed
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, parser.WithPdftotextFallback(w.cfg.PDFFallback))
	if err != nil {
		return fail("parsing", err)
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		return fail("parsing", err)
	}
	job.releaseFileData()
	if job.Title != "" {
		doc.Title = job.Title
	}
	for _, e := range doc.Unplaced {
		log.Debug("outline entry not found in page text", "level", e.Level, "title", e.Title)
	}
	job.Update(func(p *Progress) { p.Pages = len(doc.Pages) })
	job.SetContentHash(ContentHashHex([]byte(doc.Text())))

	// Phase 1.5: Dedup check
	hash := job.Snapshot().ContentHash
	if w.dedup != nil {
		if existing, ok := w.dedup.DocForHash(hash); ok && existing != job.DocID {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return StatusDupSkipped
		}
	}

	// Phase 2: Build and persist the outline.
	job.SetStatus(StatusBuilding, "building")
	if n, err := w.store.DeleteDocument(ctx, job.DocID); err != nil {
		return fail("building", fmt.Errorf("clear previous nodes: %w", err))
	} else if n > 0 {
		log.Info("replacing existing document", "nodes", n)
	}
	sink := graphstore.NewTreeSink(w.store, job.DocID)
	// Chunked parents are flushed again with their text cleared; count each
	// node once.
	flushed := make(map[string]bool)
	sink.OnFlush = func(n *doctree.Node) {
		if flushed[n.ID] {
			return
		}
		flushed[n.ID] = true
		w.metrics.NodeFlushed(n.Rank.Label)
		job.Update(func(p *Progress) { p.NodesFlushed++ })
	}
	tree, stats, err := builder.Build(ctx, doc.Title, doc.Pages, sink, builder.WithLogger(log))
	if err != nil {
		return fail("building", err)
	}
	job.Update(func(p *Progress) { p.Headings = stats.Headings })

	// Phase 3: Split oversized sections.
	job.SetStatus(StatusChunking, "chunking")
	res, err := chunker.ChunkTree(ctx, tree, w.cfg.Chunking, w.cfg.Tokenizer, sink)
	if err != nil {
		return fail("chunking", err)
	}
	w.metrics.ChunksCreated(res.ChunksCreated)
	job.Update(func(p *Progress) { p.ChunksCreated = res.ChunksCreated })
	log.Info("outline persisted", "nodes", tree.Len(), "headings", stats.Headings, "chunks", res.ChunksCreated)

	if w.dedup != nil {
		w.dedup.RememberHash(hash, job.DocID)
	}

	// Phase 4: Embed every node into its rank's index.
	if w.embedder == nil {
		job.SetStatus(StatusCompleted, "done")
		return StatusCompleted
	}
	job.SetStatus(StatusEmbedding, "embedding")
	failed, err := w.embedTree(ctx, job, tree, log)
	if errors.Is(err, graphstore.ErrUnsupported) {
		log.Info("graph backend has no vector support, skipping embeddings")
		job.SetStatus(StatusCompleted, "done")
		return StatusCompleted
	}
	if err != nil {
		return fail("embedding", err)
	}
	if failed > 0 {
		job.SetStatus(StatusPartial, "done")
		return StatusPartial
	}
	job.SetStatus(StatusCompleted, "done")
	return StatusCompleted
}

// embedTree declares the per-rank indexes and embeds every node with bounded
// concurrency. Per-node failures are recorded on the job and counted; only
// index creation and cancellation abort the pass.
func (w *Worker) embedTree(ctx context.Context, job *Job, tree *doctree.Tree, log *slog.Logger) (int, error) {
	dim := w.embedder.Dimension()
	for _, rank := range hierarchy.Levels() {
		if err := w.store.EnsureVectorIndex(ctx, rank.Label, dim); err != nil {
			return 0, fmt.Errorf("ensure index %s: %w", graphstore.IndexName(rank.Label), err)
		}
	}

	nodes := tree.Nodes()
	job.Update(func(p *Progress) { p.NodesToEmbed = len(nodes) })

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrentEmbed)
	for _, n := range nodes {
		rec := graphstore.Record(job.DocID, n)
		g.Go(func() error {
			if err := w.embedNode(gctx, rec, log); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Error("embedding failed", "node_id", rec.ID, "title", rec.Title, "error", err)
				job.AddError(fmt.Sprintf("embed %s: %s", rec.ID, err))
				return nil
			}
			job.Update(func(p *Progress) { p.NodesEmbedded++ })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(failed.Load()), err
	}
	return int(failed.Load()), nil
}

func (w *Worker) embedNode(ctx context.Context, rec graphstore.NodeRecord, log *slog.Logger) error {
	var vec []float32
	err := retry(ctx, w.backoff, func(attempt int, err error) {
		w.metrics.Embedding("retry", 0)
		log.Warn("retryable embedding error", "node_id", rec.ID, "attempt", attempt, "error", err)
	}, func() error {
		start := time.Now()
		v, err := w.embedder.Embed(ctx, rec.EmbeddingInput())
		if err != nil {
			return err
		}
		w.metrics.Embedding("ok", time.Since(start))
		vec = v
		return nil
	})
	if err != nil {
		w.metrics.Embedding("error", 0)
		return err
	}
	return w.store.SetEmbedding(ctx, rec.ID, vec)
}
