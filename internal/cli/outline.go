package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/builder"
	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/parser"
)

var (
	outlineOpts  outlineOptions
	outlineChunk bool
	outlineJSON  bool
)

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "Print the section tree of a document without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := buildOutline(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if outlineJSON {
			recs := make([]graphstore.NodeRecord, 0, tree.Len())
			for _, n := range tree.Nodes() {
				recs = append(recs, graphstore.Record("", n))
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}
		renderOutline(out, tree, outlineOpts)
		return nil
	},
}

func buildOutline(cmd *cobra.Command, path string) (*doctree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := parser.ForFile(path, parser.WithPdftotextFallback(cfg.PDFFallbackPdftotext))
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), path)
	if err != nil {
		return nil, err
	}
	for _, e := range doc.Unplaced {
		log.Warn("outline entry not found in page text", "level", e.Level, "title", e.Title)
	}

	tree, stats, err := builder.Build(cmd.Context(), doc.Title, doc.Pages, nil, builder.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build outline: %w", err)
	}
	log.Info("outline built", "pages", stats.Pages, "headings", stats.Headings)

	if outlineChunk {
		tok, err := chunker.NewTokenizer(cfg.Tokenizer)
		if err != nil {
			return nil, err
		}
		res, err := chunker.ChunkTree(cmd.Context(), tree, cfg.Chunking(), tok, nil)
		if err != nil {
			return nil, err
		}
		log.Info("chunked", "nodes_split", res.NodesSplit, "chunks", res.ChunksCreated)
	}
	return tree, nil
}

func init() {
	outlineCmd.Flags().IntVarP(&outlineOpts.MaxDepth, "depth", "d", 0, "Maximum depth to print (0 = all)")
	outlineCmd.Flags().BoolVarP(&outlineOpts.ShowText, "text", "t", false, "Show a preview of each section body")
	outlineCmd.Flags().BoolVar(&outlineChunk, "chunk", false, "Split oversized sections into chunks")
	outlineCmd.Flags().BoolVar(&outlineJSON, "json", false, "Print node records as JSON")
	rootCmd.AddCommand(outlineCmd)
}
