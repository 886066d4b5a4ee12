package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cvswarm/cvswarm/api"
	"github.com/cvswarm/cvswarm/internal/app"
	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/web/static"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [addr]",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API on the given address (default from config).
Serves POST /api/chat, GET /api/sessions, GET /health and the browser
chat page at /.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "bind address (host:port), overrides config")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, args []string) error {
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

	addr := cfg.ServeAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	if len(args) > 0 {
		addr = args[0]
	}
	if addr == "" {
		addr = api.DefaultAddr
	}
	if err = validateAddr(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	logger := log.New(log.Config{Level: slog.LevelInfo, JSON: true})
	logger.Info("starting HTTP API server", "version", Version, "addr", addr)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if _, err = a.Knowledge.Ingest(ctx, cfg.Knowledge.DocumentPath, false); err != nil {
		return fmt.Errorf("building knowledge base: %w", err)
	}

	srv := api.NewServer(
		api.NewChatHandler(a.Swarm, logger),
		api.NewSessionHandler(a.Sessions, logger),
		api.NewHealthHandler(a.DBPool, logger),
		static.Handler(),
		logger,
	)
	return srv.Run(ctx, addr)
}
