package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/hierarchy"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// baseLabel is carried by every outline node next to its rank label.
const baseLabel = "DocNode"

const nodeProjection = `{.id, .doc_id, .parent_id, .level, .hierarchy, .title, .text, .page_num}`

type Config struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Timeout     time.Duration
}

// Store persists outlines in Neo4j. Nodes carry :DocNode plus their rank
// label; edges are HAS_SECTION or HAS_CHUNK.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// Open connects, verifies connectivity and installs the id constraint.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4jstore: uri required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jstore: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jstore: verify connectivity: %w", err)
	}

	s := &Store{
		driver:   driver,
		database: cfg.Database,
		log:      log.With("component", "neo4jstore"),
	}
	s.ensureSchema(ctx)
	return s, nil
}

// ensureSchema is best effort; restricted users may not create constraints.
func (s *Store) ensureSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT docnode_id_unique IF NOT EXISTS FOR (n:` + baseLabel + `) REQUIRE n.id IS UNIQUE`,
		`CREATE INDEX docnode_doc_idx IF NOT EXISTS FOR (n:` + baseLabel + `) ON (n.doc_id)`,
	}
	for _, stmt := range stmts {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *Store) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (s *Store) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (s *Store) UpsertNode(ctx context.Context, rec graphstore.NodeRecord) error {
	label, err := rankLabel(rec.Label)
	if err != nil {
		return err
	}
	cypher := `
MERGE (n:` + baseLabel + ` {id: $id})
SET n:` + label + `,
    n.doc_id = $doc_id,
    n.parent_id = $parent_id,
    n.level = $level,
    n.hierarchy = $hierarchy,
    n.title = $title,
    n.text = $text,
    n.page_num = $page_num,
    n.synced_at = $synced_at
`
	return s.write(ctx, cypher, map[string]any{
		"id":        rec.ID,
		"doc_id":    rec.DocID,
		"parent_id": rec.ParentID,
		"level":     int64(rec.Ordinal),
		"hierarchy": rec.Label,
		"title":     rec.Title,
		"text":      rec.Text,
		"page_num":  int64(rec.Page),
		"synced_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// UpsertEdge merges both endpoints by id so edges can be written before the
// parent node itself is flushed.
func (s *Store) UpsertEdge(ctx context.Context, parentID, childID, kind string) error {
	if kind != graphstore.RelHasSection && kind != graphstore.RelHasChunk {
		return fmt.Errorf("neo4jstore: unknown relation kind %q", kind)
	}
	cypher := `
MERGE (p:` + baseLabel + ` {id: $parent_id})
MERGE (c:` + baseLabel + ` {id: $child_id})
MERGE (p)-[:` + kind + `]->(c)
`
	return s.write(ctx, cypher, map[string]any{
		"parent_id": parentID,
		"child_id":  childID,
	})
}

func (s *Store) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	cypher := `
MATCH (n:` + baseLabel + ` {id: $id})
CALL db.create.setNodeVectorProperty(n, 'embedding', $embedding)
RETURN n.id AS id
`
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	found, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"id": id, "embedding": toFloat64s(vec)})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return len(recs) > 0, nil
	})
	if err != nil {
		return fmt.Errorf("set embedding %s: %w", id, err)
	}
	if ok, _ := found.(bool); !ok {
		return fmt.Errorf("set embedding %s: %w", id, graphstore.ErrNotFound)
	}
	return nil
}

func (s *Store) EnsureVectorIndex(ctx context.Context, label string, dim int) error {
	label, err := rankLabel(label)
	if err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("neo4jstore: invalid vector dimension %d", dim)
	}
	cypher := fmt.Sprintf("CREATE VECTOR INDEX `%s` IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
		"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
		graphstore.IndexName(label), label, dim)
	return s.write(ctx, cypher, nil)
}

func (s *Store) VectorSearch(ctx context.Context, label string, vec []float32, topK int) ([]graphstore.Hit, error) {
	if topK <= 0 {
		topK = 2
	}
	recs, err := s.read(ctx, `
CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score
RETURN node `+nodeProjection+` AS node, score
ORDER BY score DESC
`, map[string]any{
		"index":     graphstore.IndexName(label),
		"k":         int64(topK),
		"embedding": toFloat64s(vec),
	})
	if isNoIndex(err) {
		return nil, fmt.Errorf("vector search %s: %w", label, graphstore.ErrNoIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", label, err)
	}

	hits := make([]graphstore.Hit, 0, len(recs))
	for _, r := range recs {
		nodeVal, _ := r.Get("node")
		scoreVal, _ := r.Get("score")
		score, _ := scoreVal.(float64)
		hits = append(hits, graphstore.Hit{Score: score, Node: decodeNode(nodeVal)})
	}
	return hits, nil
}

func (s *Store) PathToRoot(ctx context.Context, id string) ([]graphstore.NodeRecord, error) {
	recs, err := s.read(ctx, `
MATCH p = (root:`+baseLabel+`)-[:HAS_SECTION|HAS_CHUNK*0..]->(n:`+baseLabel+` {id: $id})
WHERE NOT ()-[:HAS_SECTION|HAS_CHUNK]->(root)
RETURN [x IN nodes(p) | x `+nodeProjection+`] AS path
ORDER BY length(p) DESC
LIMIT 1
`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("path %s: %w", id, graphstore.ErrNotFound)
	}
	raw, _ := recs[0].Get("path")
	items, _ := raw.([]any)
	path := make([]graphstore.NodeRecord, 0, len(items))
	for _, it := range items {
		path = append(path, decodeNode(it))
	}
	return path, nil
}

// Descendants returns the subtree below id in pre-order, siblings by page.
func (s *Store) Descendants(ctx context.Context, id string) ([]graphstore.NodeRecord, error) {
	recs, err := s.read(ctx, `
MATCH (n:`+baseLabel+` {id: $id})
OPTIONAL MATCH p = (n)-[:HAS_SECTION|HAS_CHUNK*1..]->(d:`+baseLabel+`)
WITH n, d, min(length(p)) AS depth
RETURN n.id AS root, d `+nodeProjection+` AS node, depth
ORDER BY d.page_num, depth
`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("descendants %s: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("descendants %s: %w", id, graphstore.ErrNotFound)
	}
	out := make([]graphstore.NodeRecord, 0, len(recs))
	for _, r := range recs {
		v, _ := r.Get("node")
		if v == nil {
			continue
		}
		out = append(out, decodeNode(v))
	}
	return graphstore.PreOrder(id, out), nil
}

func (s *Store) NodesForDocument(ctx context.Context, docID string) ([]graphstore.NodeRecord, error) {
	recs, err := s.read(ctx, `
MATCH (n:`+baseLabel+` {doc_id: $doc_id})
RETURN n `+nodeProjection+` AS node
ORDER BY n.level, n.page_num
`, map[string]any{"doc_id": docID})
	if err != nil {
		return nil, fmt.Errorf("nodes for %s: %w", docID, err)
	}
	out := make([]graphstore.NodeRecord, 0, len(recs))
	for _, r := range recs {
		v, _ := r.Get("node")
		out = append(out, decodeNode(v))
	}
	return out, nil
}

func (s *Store) Documents(ctx context.Context) ([]graphstore.NodeRecord, error) {
	recs, err := s.read(ctx, `
MATCH (n:`+baseLabel+`:Document)
RETURN n `+nodeProjection+` AS node
ORDER BY n.title
`, nil)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]graphstore.NodeRecord, 0, len(recs))
	for _, r := range recs {
		v, _ := r.Get("node")
		out = append(out, decodeNode(v))
	}
	return out, nil
}

func (s *Store) DeleteDocument(ctx context.Context, docID string) (int, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:`+baseLabel+` {doc_id: $doc_id})
DETACH DELETE n
`, map[string]any{"doc_id": docID})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesDeleted(), nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", docID, err)
	}
	n, _ := out.(int)
	return n, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// rankLabel guards label interpolation into Cypher: only known rank labels
// are accepted.
func rankLabel(label string) (string, error) {
	if _, ok := hierarchy.ByLabel(label); !ok {
		return "", fmt.Errorf("neo4jstore: unknown rank label %q", label)
	}
	return label, nil
}

func decodeNode(v any) graphstore.NodeRecord {
	m, _ := v.(map[string]any)
	return graphstore.NodeRecord{
		ID:       str(m["id"]),
		DocID:    str(m["doc_id"]),
		ParentID: str(m["parent_id"]),
		Ordinal:  int(num(m["level"])),
		Label:    str(m["hierarchy"]),
		Title:    str(m["title"]),
		Text:     str(m["text"]),
		Page:     int(num(m["page_num"])),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func toFloat64s(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, f := range vec {
		out[i] = float64(f)
	}
	return out
}

// isNoIndex reports whether err is the procedure failure Neo4j raises when
// queryNodes names an index that does not exist.
func isNoIndex(err error) bool {
	var nerr *neo4j.Neo4jError
	if !errors.As(err, &nerr) {
		return false
	}
	return strings.Contains(strings.ToLower(nerr.Msg), "no such vector schema index")
}
