// Package backend builds the graph store and embedder named by the
// configuration. Both binaries share it.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/graphstore/memstore"
	"github.com/dgallion1/docgraph/internal/graphstore/neo4jstore"
	"github.com/dgallion1/docgraph/internal/pathstore"
)

// OpenStore connects to the configured graph backend.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (graphstore.Store, error) {
	switch cfg.GraphBackend {
	case "neo4j":
		return neo4jstore.Open(ctx, neo4jstore.Config{
			URI:         cfg.Neo4jURI,
			User:        cfg.Neo4jUser,
			Password:    cfg.Neo4jPassword,
			Database:    cfg.Neo4jDatabase,
			MaxPoolSize: cfg.Neo4jMaxPoolSize,
			Timeout:     cfg.Neo4jTimeout,
		}, log)
	case "pathstore":
		return pathstore.NewStore(pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)), nil
	case "memory":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown graph backend %q", cfg.GraphBackend)
}

// NewEmbedder builds the configured embedder, wrapped in a Redis cache when
// REDIS_URL is set. stats, when non-nil, records provider latency. The
// returned func releases the provider and cache connections.
func NewEmbedder(cfg config.Config, stats *embed.Stats, log *slog.Logger) (embed.Embedder, func(), error) {
	var (
		e       embed.Embedder
		closers []func()
	)
	switch cfg.Embedder {
	case "openai":
		c := embed.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions, stats)
		closers = append(closers, c.Close)
		e = c
	case "hash":
		e = embed.NewHashEmbedder(cfg.EmbeddingDimensions)
	default:
		return nil, nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		closers = append(closers, func() { rdb.Close() })
		e = embed.NewCachedEmbedder(e, rdb, cfg.EmbedCacheTTL, log)
		log.Info("embedding cache enabled", "addr", opts.Addr, "ttl", cfg.EmbedCacheTTL)
	}

	return e, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
