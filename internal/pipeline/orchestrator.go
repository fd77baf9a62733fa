package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/metrics"
)

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	store    graphstore.Store
	embedder embed.Embedder
	tok      chunker.Tokenizer
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      config.Config

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, store graphstore.Store, embedder embed.Embedder, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	tok, err := chunker.NewTokenizer(cfg.Tokenizer)
	if err != nil {
		log.Warn("tokenizer unavailable, using the default", "tokenizer", cfg.Tokenizer, "error", err)
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		store:    store,
		embedder: embedder,
		tok:      tok,
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
}

func (o *Orchestrator) newWorker() *Worker {
	w := NewWorker(o.store, o.embedder, o.metrics, o.log, WorkerConfig{
		Chunking:           o.cfg.Chunking(),
		Tokenizer:          o.tok,
		MaxConcurrentEmbed: o.cfg.MaxConcurrentEmbed,
		PDFFallback:        o.cfg.PDFFallbackPdftotext,
	})
	w.dedup = o.jobs
	return w
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.metrics.SetQueueDepth(len(o.queue))
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing. It fails with ErrDocumentBusy
// when the document already has a job in flight.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return fmt.Errorf("pipeline is stopped")
	}
	if err := o.jobs.Put(job); err != nil {
		return err
	}
	select {
	case o.queue <- job:
		o.metrics.SetQueueDepth(len(o.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		o.metrics.JobFinished(string(StatusFailed))
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// Jobs returns snapshots of every tracked job.
func (o *Orchestrator) Jobs() []JobSnapshot {
	return o.jobs.List()
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// DeleteDocument removes a document's nodes from the graph and forgets its
// content hash so the same file can be ingested again.
func (o *Orchestrator) DeleteDocument(ctx context.Context, docID string) (int, error) {
	if o.jobs.Busy(docID) {
		return 0, fmt.Errorf("%w: doc %s", ErrDocumentBusy, docID)
	}
	n, err := o.store.DeleteDocument(ctx, docID)
	if err != nil {
		return 0, err
	}
	o.jobs.ForgetDocument(docID)
	o.log.Info("document deleted", "doc_id", docID, "nodes", n)
	return n, nil
}

// Store returns the graph store for direct use by API handlers.
func (o *Orchestrator) Store() graphstore.Store {
	return o.store
}

// Embedder returns the configured embedder, or nil when none is set.
func (o *Orchestrator) Embedder() embed.Embedder {
	return o.embedder
}
