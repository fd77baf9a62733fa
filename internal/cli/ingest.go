package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/backend"
	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/dgallion1/docgraph/internal/embed"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

var (
	ingestDocID   string
	ingestTitle   string
	ingestNoEmbed bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Build, store and embed the section tree of one or more documents",
	Long: `Runs each file through the ingest pipeline in this process: parse, rebuild
the hierarchy, persist it to the configured graph backend, split long sections
and embed every node. Files are processed one after another.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestDocID != "" && len(args) > 1 {
			return fmt.Errorf("--doc-id needs exactly one file")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := backend.OpenStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close(ctx)

		var e embed.Embedder
		if !ingestNoEmbed {
			var closeEmbedder func()
			e, closeEmbedder, err = backend.NewEmbedder(cfg, nil, log)
			if err != nil {
				return err
			}
			defer closeEmbedder()
		}

		tok, err := chunker.NewTokenizer(cfg.Tokenizer)
		if err != nil {
			return err
		}
		w := pipeline.NewWorker(store, e, nil, log, pipeline.WorkerConfig{
			Chunking:           cfg.Chunking(),
			Tokenizer:          tok,
			MaxConcurrentEmbed: cfg.MaxConcurrentEmbed,
			PDFFallback:        cfg.PDFFallbackPdftotext,
		})

		failed := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			docID := ingestDocID
			if docID == "" {
				docID = pipeline.ContentHashHex(data)[:16]
			}
			job := pipeline.NewJob(docID, path, ingestTitle, data)
			w.Process(ctx, job)

			snap := job.Snapshot()
			renderJob(cmd.OutOrStdout(), snap)
			if snap.Status == pipeline.StatusFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "Document id (default: content hash prefix)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "Document title (default: file name)")
	ingestCmd.Flags().BoolVar(&ingestNoEmbed, "no-embed", false, "Store the tree without embeddings")
	rootCmd.AddCommand(ingestCmd)
}
