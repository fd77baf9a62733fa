// Package cli implements the docgraph command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/logger"
)

var (
	configPath string
	logMode    string

	cfg config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docgraph",
	Short: "Rebuild the section hierarchy of statutory documents",
	Long: `docgraph reconstructs the heading hierarchy of statutes, tax codes and
similar documents, stores the resulting section tree in a graph, and answers
questions against it with per-rank vector search.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		var flush func()
		log, flush, err = logger.New(logMode)
		if err != nil {
			return err
		}
		cobra.OnFinalize(flush)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DOCGRAPH_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "off", "Log output: production, development or off")
}

// Execute runs the root command. SIGINT cancels the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}
