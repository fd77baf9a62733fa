package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Graph backend: neo4j, memory or pathstore
	GraphBackend string

	Neo4jURI         string
	Neo4jUser        string
	Neo4jPassword    string
	Neo4jDatabase    string
	Neo4jMaxPoolSize int
	Neo4jTimeout     time.Duration

	PathstoreURL    string
	PathstoreAPIKey string

	// Embeddings: openai or hash
	Embedder            string
	OpenAIBaseURL       string
	OpenAIAPIKey        string
	EmbeddingModel      string
	EmbeddingDimensions int
	RedisURL            string
	EmbedCacheTTL       time.Duration

	// Chunking, in tokens of the named tiktoken encoding ("words" counts
	// whitespace-separated words instead)
	Tokenizer      string
	ChunkThreshold int
	ChunkSize      int
	ChunkOverlap   int

	SearchTopKPerLabel int

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentEmbed int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogMode string
}

// Load reads configuration from the environment, an optional .env file and
// the YAML file named by DOCGRAPH_CONFIG.
func Load() (Config, error) {
	return LoadFile(os.Getenv("DOCGRAPH_CONFIG"))
}

// LoadFile is Load with an explicit YAML path. The file holds the same keys
// as the environment, in any case; environment variables win over it.
func LoadFile(path string) (Config, error) {
	_ = godotenv.Load()

	file, err := readYAML(path)
	if err != nil {
		return Config{}, err
	}
	get := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return file[key]
	}

	cfg := Config{
		Port: envOr(get, "PORT", "8090"),

		APIKey: get("DOCGRAPH_API_KEY"),

		GraphBackend: strings.ToLower(envOr(get, "GRAPH_BACKEND", "neo4j")),

		Neo4jURI:         envOr(get, "NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:        envOr(get, "NEO4J_USER", "neo4j"),
		Neo4jPassword:    get("NEO4J_PASSWORD"),
		Neo4jDatabase:    get("NEO4J_DATABASE"),
		Neo4jMaxPoolSize: envInt(get, "NEO4J_MAX_POOL_SIZE", 50),
		Neo4jTimeout:     envDuration(get, "NEO4J_TIMEOUT", 30*time.Second),

		PathstoreURL:    envOr(get, "PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: get("PATHSTORE_API_KEY"),

		Embedder:            strings.ToLower(envOr(get, "EMBEDDER", "openai")),
		OpenAIBaseURL:       envOr(get, "OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:        get("OPENAI_API_KEY"),
		EmbeddingModel:      envOr(get, "EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt(get, "EMBEDDING_DIMENSIONS", 1536),
		RedisURL:            get("REDIS_URL"),
		EmbedCacheTTL:       envDuration(get, "EMBED_CACHE_TTL", 30*24*time.Hour),

		Tokenizer:      strings.ToLower(envOr(get, "TOKENIZER", chunker.DefaultEncoding)),
		ChunkThreshold: envInt(get, "CHUNK_THRESHOLD", 5000),
		ChunkSize:      envInt(get, "CHUNK_SIZE", 1000),
		ChunkOverlap:   envInt(get, "CHUNK_OVERLAP", 100),

		SearchTopKPerLabel: envInt(get, "SEARCH_TOP_K_PER_LABEL", 2),

		WorkerCount:        envInt(get, "WORKER_COUNT", 4),
		MaxQueueSize:       envInt(get, "MAX_QUEUE_SIZE", 100),
		MaxConcurrentEmbed: envInt(get, "MAX_CONCURRENT_EMBED", 8),

		MaxUploadBytes: envInt64(get, "MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration(get, "JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool(get, "PDF_FALLBACK_PDFTOTEXT", true),

		LogMode: envOr(get, "LOG_MODE", "production"),
	}

	if cfg.Neo4jMaxPoolSize <= 0 {
		cfg.Neo4jMaxPoolSize = 50
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = 1536
	}
	if cfg.SearchTopKPerLabel <= 0 {
		cfg.SearchTopKPerLabel = 2
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg, nil
}

// Validate checks the settings every entry point needs.
func (c Config) Validate() error {
	switch c.GraphBackend {
	case "neo4j":
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required")
		}
	case "pathstore":
		if c.PathstoreURL == "" {
			return fmt.Errorf("PATHSTORE_URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("GRAPH_BACKEND must be neo4j, memory or pathstore, got %q", c.GraphBackend)
	}

	switch c.Embedder {
	case "openai":
		if c.OpenAIAPIKey == "" && strings.Contains(c.OpenAIBaseURL, "api.openai.com") {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case "hash":
	default:
		return fmt.Errorf("EMBEDDER must be openai or hash, got %q", c.Embedder)
	}

	switch c.Tokenizer {
	case "", "o200k_base", "cl100k_base", "p50k_base", "r50k_base", "words":
	default:
		return fmt.Errorf("TOKENIZER must be a tiktoken encoding or words, got %q", c.Tokenizer)
	}

	if err := c.Chunking().Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateServer adds the checks that only apply to the HTTP server.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCGRAPH_API_KEY is required")
	}
	return nil
}

// Chunking returns the chunker settings.
func (c Config) Chunking() chunker.Config {
	return chunker.Config{
		Threshold:    c.ChunkThreshold,
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
	}
}

// readYAML loads a flat key/value YAML file. Keys are upper-cased so
// neo4j_uri and NEO4J_URI are the same setting.
func readYAML(path string) (map[string]string, error) {
	out := make(map[string]string)
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func envOr(get func(string) string, key, fallback string) string {
	if v := get(key); v != "" {
		return v
	}
	return fallback
}

func envInt(get func(string) string, key string, fallback int) int {
	if v := get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(get func(string) string, key string, fallback int64) int64 {
	if v := get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(get func(string) string, key string, fallback bool) bool {
	if v := get(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(get func(string) string, key string, fallback time.Duration) time.Duration {
	if v := get(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
