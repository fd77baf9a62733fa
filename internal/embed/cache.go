package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedEmbedder serves repeated texts from Redis. Keys combine the inner
// embedder's name with a sha256 of the input, so switching models never
// returns stale vectors. Cache failures are logged and fall through to the
// inner embedder.
type CachedEmbedder struct {
	inner  Embedder
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedEmbedder(inner Embedder, client *redis.Client, ttl time.Duration, log *slog.Logger) *CachedEmbedder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CachedEmbedder{inner: inner, client: client, ttl: ttl, log: log}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.inner.Name(), text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		vec, derr := decodeVector(raw)
		if derr == nil && len(vec) == c.inner.Dimension() {
			return vec, nil
		}
		c.log.Warn("discarding bad cache entry", "key", key, "error", derr)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("embedding cache read failed", "error", err)
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.log.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Name() string { return c.inner.Name() }

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "docgraph:emb:" + model + ":" + hex.EncodeToString(sum[:])
}

// encodeVector packs float32 values little-endian.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes, not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
