package chunker

import (
	"context"
	"fmt"

	"github.com/dgallion1/docgraph/internal/builder"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

// Config controls chunking behavior. All sizes are in tokens.
type Config struct {
	Threshold    int // Nodes with more tokens than this are split.
	ChunkSize    int // Window size.
	ChunkOverlap int // Tokens shared by consecutive windows.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:    5000,
		ChunkSize:    1000,
		ChunkOverlap: 100,
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, %d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Result summarizes a chunking pass.
type Result struct {
	NodesSplit    int `json:"nodes_split"`
	ChunksCreated int `json:"chunks_created"`
}

// ChunkTree splits the body text of every oversized node into Chunk
// children, flushes them, then clears the node's own text and flushes it
// again so the prose lives only in the chunks. Running it twice is a no-op
// because the second pass finds no oversized text. A nil tok means the
// default BPE tokenizer.
func ChunkTree(ctx context.Context, tree *doctree.Tree, cfg Config, tok Tokenizer, sink builder.Sink) (Result, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5000
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if tok == nil {
		var err error
		if tok, err = DefaultTokenizer(); err != nil {
			return Result{}, err
		}
	}

	var res Result
	for _, n := range tree.Nodes() {
		if n.Rank.IsChunk() || CountTokens(tok, n.Text) <= cfg.Threshold {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		windows := Split(n.Text, cfg.ChunkSize, cfg.ChunkOverlap, tok)
		for _, w := range windows {
			c := doctree.NewNode(hierarchy.Chunk, "", n.Page)
			c.Text = w
			if err := tree.Attach(n.ID, c); err != nil {
				return res, fmt.Errorf("attach chunk under %q: %w", n.Title, err)
			}
			if sink != nil {
				if err := sink.FlushNode(ctx, c); err != nil {
					return res, fmt.Errorf("flush chunk of %q: %w", n.Title, err)
				}
			}
			res.ChunksCreated++
		}

		n.Text = ""
		if sink != nil {
			if err := sink.FlushNode(ctx, n); err != nil {
				return res, fmt.Errorf("flush chunked %q: %w", n.Title, err)
			}
		}
		res.NodesSplit++
	}
	return res, nil
}
