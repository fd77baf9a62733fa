package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docgraph/internal/api"
	"github.com/dgallion1/docgraph/internal/backend"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/logger"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/dgallion1/docgraph/internal/retrieval"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}

	log, flush, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer flush()

	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	store, err := backend.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("open graph store", "backend", cfg.GraphBackend, "error", err)
		os.Exit(1)
	}
	stats := embed.NewStats(15 * time.Minute)
	embedder, closeEmbedder, err := backend.NewEmbedder(cfg, stats, log)
	if err != nil {
		log.Error("init embedder", "error", err)
		os.Exit(1)
	}
	m := metrics.New()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, store, embedder, m, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	retriever := retrieval.New(store, embedder, cfg.SearchTopKPerLabel, log)
	srv := api.NewServer(orch, retriever, m, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		closeEmbedder()
		if err := store.Close(shutdownCtx); err != nil {
			log.Warn("close graph store", "error", err)
		}
	}()

	log.Info("starting docgraph",
		"port", cfg.Port,
		"graph_backend", cfg.GraphBackend,
		"embedder", embedder.Name(),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
