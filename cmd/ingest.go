package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cvswarm/cvswarm/internal/app"
	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Build the curriculum knowledge base",
	Long: `Chunks and embeds the curriculum document into the vector store.
A collection that already holds documents is left untouched unless
--force is given, which purges and rebuilds it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "purge the collection and re-embed")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err = requireAPIKey(); err != nil {
		return err
	}

	path := cfg.Knowledge.DocumentPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no document to ingest: pass a file or set knowledge.document_path")
	}

	logger := log.New(log.Config{Level: slog.LevelInfo})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	n, err := a.Knowledge.Ingest(ctx, path, ingestForce)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}
	if n == 0 {
		fmt.Printf("Collection %q already populated, nothing to do (use --force to rebuild)\n", cfg.Knowledge.Collection)
		return nil
	}
	fmt.Printf("Ingested %d chunks from %s into collection %q\n", n, path, cfg.Knowledge.Collection)
	return nil
}
