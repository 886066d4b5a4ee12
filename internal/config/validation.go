package config

import (
	"fmt"
	"log/slog"
	"os"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is read by the Genkit plugin directly; only presence is
	// checked here so misconfiguration fails at startup, not mid-request.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "cvswarm_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}

	if c.SearXNG.BaseURL == "" {
		return fmt.Errorf("%w: searxng.base_url cannot be empty", ErrInvalidSearch)
	}
	if c.SearXNG.MaxResults < 1 || c.SearXNG.MaxResults > 20 {
		return fmt.Errorf("%w: searxng.max_results must be between 1 and 20, got %d",
			ErrInvalidSearch, c.SearXNG.MaxResults)
	}

	if c.Knowledge.Collection == "" {
		return fmt.Errorf("%w: knowledge.collection cannot be empty", ErrInvalidKnowledge)
	}
	if c.Knowledge.TopK < 1 || c.Knowledge.TopK > 20 {
		return fmt.Errorf("%w: knowledge.top_k must be between 1 and 20, got %d",
			ErrInvalidKnowledge, c.Knowledge.TopK)
	}
	if c.Knowledge.SimilarityThreshold < 0 || c.Knowledge.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: knowledge.similarity_threshold must be between 0 and 1, got %.2f",
			ErrInvalidKnowledge, c.Knowledge.SimilarityThreshold)
	}

	if c.Dispatch.MaxHandoffs < 1 {
		return fmt.Errorf("%w: dispatch.max_handoffs must be at least 1, got %d",
			ErrInvalidDispatch, c.Dispatch.MaxHandoffs)
	}
	if c.Dispatch.GenerateTimeoutMs < 1 || c.Dispatch.SearchTimeoutMs < 1 || c.Dispatch.RetrieveTimeoutMs < 1 {
		return fmt.Errorf("%w: capability timeouts must be positive", ErrInvalidDispatch)
	}

	return nil
}
