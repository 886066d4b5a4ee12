// Package app provides application initialization and dependency wiring.
//
// App is the core container that assembles configuration, the database
// pool, Genkit, the knowledge store, the web search client, the
// responders and the conversation service, and owns their shutdown
// order.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/knowledge"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/search"
	"github.com/cvswarm/cvswarm/internal/session"
	"github.com/cvswarm/cvswarm/internal/swarm"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Search    *search.Client
	Swarm     *swarm.Service

	tracingShutdown func(context.Context) error
}

// Close releases all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.tracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracingShutdown(ctx); err != nil {
			a.Logger.Warn("failed to shut down tracer provider", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}

	return nil
}
