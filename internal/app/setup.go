package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvswarm/cvswarm/db"
	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/knowledge"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/observability"
	"github.com/cvswarm/cvswarm/internal/responder"
	"github.com/cvswarm/cvswarm/internal/search"
	"github.com/cvswarm/cvswarm/internal/session"
	"github.com/cvswarm/cvswarm/internal/swarm"
)

const shutdownTimeout = 5 * time.Second

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	shutdown, err := observability.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}
	a.tracingShutdown = shutdown

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	a.Genkit = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	a.Embedder = googlegenai.GoogleAIEmbedder(a.Genkit, cfg.EmbedderModel)

	a.Knowledge = knowledge.New(
		knowledge.NewQuerier(pool, logger),
		a.Embedder,
		knowledge.Options{
			Collection: cfg.Knowledge.Collection,
			TopK:       cfg.Knowledge.TopK,
			Threshold:  float32(cfg.Knowledge.SimilarityThreshold),
		},
		logger,
	)

	a.Search = search.NewClient(cfg.SearXNG, search.NewFetcher(cfg.Fetcher, logger), logger)
	a.Sessions = session.New(pool, responder.RoleCurriculum, logger)

	service, err := provideSwarm(a, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Swarm = service

	logger.Info("application initialized",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel,
		"collection", cfg.Knowledge.Collection,
	)
	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return pool, nil
}

// provideSwarm assembles the responders, the handoff router, and the
// conversation service on top of the already-initialized stores.
func provideSwarm(a *App, cfg *config.Config, logger log.Logger) (*swarm.Service, error) {
	timeouts := responder.Timeouts{
		Generate: time.Duration(cfg.Dispatch.GenerateTimeoutMs) * time.Millisecond,
		Search:   time.Duration(cfg.Dispatch.SearchTimeoutMs) * time.Millisecond,
		Retrieve: time.Duration(cfg.Dispatch.RetrieveTimeoutMs) * time.Millisecond,
	}

	curriculumDesc := (&responder.Curriculum{}).Describe()
	searchDesc := (&responder.WebSearch{}).Describe()

	generator := responder.NewGenkitGenerator(
		a.Genkit,
		qualifiedModelName(cfg.ModelName),
		[]responder.Descriptor{curriculumDesc, searchDesc},
		nil,
		logger,
	)

	curriculum := responder.NewCurriculum(generator, a.Knowledge,
		[]responder.Descriptor{searchDesc}, timeouts, logger)
	webSearch := responder.NewWebSearch(generator, a.Search,
		[]responder.Descriptor{curriculumDesc}, timeouts, logger)

	router, err := swarm.NewRouter(
		[]responder.Responder{curriculum, webSearch},
		responder.RoleCurriculum,
		cfg.Dispatch.MaxHandoffs,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("building router: %w", err)
	}

	return swarm.NewService(a.Sessions, router, logger), nil
}

// qualifiedModelName prefixes the configured model with the Google AI
// provider namespace Genkit expects.
func qualifiedModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}
