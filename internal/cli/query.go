package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/backend"
	"github.com/dgallion1/docgraph/internal/graphstore"
	"github.com/dgallion1/docgraph/internal/retrieval"
)

var (
	searchLimit  int
	searchExpand bool
	queryJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <question>...",
	Short: "Search every rank index and print the best sections",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := backend.OpenStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		e, closeEmbedder, err := backend.NewEmbedder(cfg, nil, log)
		if err != nil {
			return err
		}
		defer closeEmbedder()

		r := retrieval.New(store, e, cfg.SearchTopKPerLabel, log)
		hits, err := r.Search(ctx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}

		views := make([]hitView, 0, len(hits))
		for _, h := range hits {
			v := hitView{Score: h.Score, Node: h.Node}
			if searchExpand {
				c, err := r.Expand(ctx, h)
				if err != nil {
					log.Warn("expand failed", "node_id", h.Node.ID, "error", err)
				} else {
					v.Source = c.Source()
				}
			}
			views = append(views, v)
		}
		if queryJSON {
			return writeJSONOut(cmd.OutOrStdout(), views)
		}
		renderHits(cmd.OutOrStdout(), views)
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <node-id>",
	Short: "Print the ancestor chain of a node, root first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store graphstore.Store) error {
			nodes, err := store.PathToRoot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), nodes)
		})
	},
}

var subtreeCmd = &cobra.Command{
	Use:   "subtree <node-id>",
	Short: "Print every descendant of a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store graphstore.Store) error {
			nodes, err := store.Descendants(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), nodes)
		})
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store graphstore.Store) error {
			docs, err := store.Documents(cmd.Context())
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSONOut(cmd.OutOrStdout(), docs)
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", titleStyle.Render(d.Title), dimStyle.Render("doc "+d.DocID), dimStyle.Render("root "+d.ID))
			}
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a stored document and all of its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store graphstore.Store) error {
			n, err := store.DeleteDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("document %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d nodes\n", successStyle.Render("deleted"), n)
			return nil
		})
	},
}

func withStore(cmd *cobra.Command, fn func(graphstore.Store) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, err := backend.OpenStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close(cmd.Context())
	return fn(store)
}

func printNodes(w io.Writer, nodes []graphstore.NodeRecord) error {
	if queryJSON {
		return writeJSONOut(w, nodes)
	}
	renderNodes(w, nodes)
	return nil
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum number of hits")
	searchCmd.Flags().BoolVar(&searchExpand, "expand", true, "Resolve each hit's ancestor chain")
	for _, c := range []*cobra.Command{searchCmd, pathCmd, subtreeCmd, documentsCmd} {
		c.Flags().BoolVar(&queryJSON, "json", false, "Print JSON")
	}
	rootCmd.AddCommand(searchCmd, pathCmd, subtreeCmd, documentsCmd, deleteCmd)
}
