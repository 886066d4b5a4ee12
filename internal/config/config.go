// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables (runtime override)
//  2. Config file (~/.cvswarm/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - Model: generation model, embedder model
//   - Storage: PostgreSQL connection (storage.go)
//   - Knowledge: curriculum document, collection, retrieval parameters
//   - Search: SearXNG instance and result-page fetcher
//   - Dispatch: handoff bound and capability timeouts
//   - Tracing: OTLP trace export (optional)
//
// Sensitive values (the Postgres password) are masked in MarshalJSON and
// String. Validation is fail-fast with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgres indicates a PostgreSQL connection setting is invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidSearch indicates a search setting is invalid.
	ErrInvalidSearch = errors.New("invalid search configuration")

	// ErrInvalidKnowledge indicates a knowledge-base setting is invalid.
	ErrInvalidKnowledge = errors.New("invalid knowledge configuration")

	// ErrInvalidDispatch indicates a dispatch setting is invalid.
	ErrInvalidDispatch = errors.New("invalid dispatch configuration")
)

const (
	// DefaultModel is the default Gemini generation model.
	DefaultModel = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions, which is
	// what the documents table schema uses.
	DefaultEmbedderModel = "gemini-embedding-001"
)

// SearXNGConfig holds the SearXNG web-search settings.
type SearXNGConfig struct {
	// BaseURL is the SearXNG instance URL (e.g., http://localhost:8888).
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// MaxResults caps the number of results returned per query.
	MaxResults int `mapstructure:"max_results" json:"max_results"`
}

// FetcherConfig holds the result-page fetcher settings.
type FetcherConfig struct {
	// Enabled turns on fetching the top result page to enrich answers.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Parallelism is max concurrent requests per domain.
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is the delay between requests in milliseconds.
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is the per-request timeout in milliseconds.
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// KnowledgeConfig holds the curriculum knowledge-base settings.
type KnowledgeConfig struct {
	// DocumentPath is the curriculum document ingested into the knowledge base.
	DocumentPath string `mapstructure:"document_path" json:"document_path"`
	// Collection names the document collection; ingest is idempotent per
	// collection (an already-populated collection is never re-embedded).
	Collection string `mapstructure:"collection" json:"collection"`
	// TopK is the number of chunks retrieved per query.
	TopK int `mapstructure:"top_k" json:"top_k"`
	// SimilarityThreshold drops chunks below this cosine similarity.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
}

// DispatchConfig holds the router and capability-timeout settings.
type DispatchConfig struct {
	// MaxHandoffs bounds the number of roles visited per turn. With the
	// two-responder topology 2 means at most one handoff per turn.
	MaxHandoffs int `mapstructure:"max_handoffs" json:"max_handoffs"`
	// GenerateTimeoutMs bounds one text-generation call.
	GenerateTimeoutMs int `mapstructure:"generate_timeout_ms" json:"generate_timeout_ms"`
	// SearchTimeoutMs bounds one web-search call.
	SearchTimeoutMs int `mapstructure:"search_timeout_ms" json:"search_timeout_ms"`
	// RetrieveTimeoutMs bounds one knowledge-base lookup.
	RetrieveTimeoutMs int `mapstructure:"retrieve_timeout_ms" json:"retrieve_timeout_ms"`
}

// TracingConfig holds OTLP trace export settings.
type TracingConfig struct {
	// Enabled turns on trace export.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP HTTP endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment tags exported spans (dev, staging, prod).
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name shown in the APM backend.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; when adding a new
// secret field, update MarshalJSON as well.
type Config struct {
	// Model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Domain configuration
	SearXNG   SearXNGConfig   `mapstructure:"searxng" json:"searxng"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher" json:"fetcher"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" json:"knowledge"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" json:"dispatch"`
	Tracing   TracingConfig   `mapstructure:"tracing" json:"tracing"`

	// HTTP server bind address for serve mode.
	ServeAddr string `mapstructure:"serve_addr" json:"serve_addr"`
}

// Load loads configuration.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".cvswarm")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "cvswarm")
	v.SetDefault("postgres_password", "cvswarm_dev_password")
	v.SetDefault("postgres_db_name", "cvswarm")
	v.SetDefault("postgres_ssl_mode", "disable")

	// SearXNG defaults
	v.SetDefault("searxng.base_url", "http://localhost:8888")
	v.SetDefault("searxng.max_results", 5)

	// Fetcher defaults
	v.SetDefault("fetcher.enabled", true)
	v.SetDefault("fetcher.parallelism", 2)
	v.SetDefault("fetcher.delay_ms", 1000)
	v.SetDefault("fetcher.timeout_ms", 30000)

	// Knowledge defaults
	v.SetDefault("knowledge.document_path", "data/curriculum.md")
	v.SetDefault("knowledge.collection", "cv_professional")
	v.SetDefault("knowledge.top_k", 7)
	v.SetDefault("knowledge.similarity_threshold", 0.50)

	// Dispatch defaults
	v.SetDefault("dispatch.max_handoffs", 2)
	v.SetDefault("dispatch.generate_timeout_ms", 60000)
	v.SetDefault("dispatch.search_timeout_ms", 15000)
	v.SetDefault("dispatch.retrieve_timeout_ms", 10000)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.environment", "dev")
	v.SetDefault("tracing.service_name", "cvswarm")

	v.SetDefault("serve_addr", "127.0.0.1:3400")
}

// bindEnvVariables binds the explicit environment overrides.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper;
// Validate() only checks its presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "CVSWARM_MODEL_NAME")
	mustBind("searxng.base_url", "CVSWARM_SEARXNG_URL")
	mustBind("knowledge.document_path", "CVSWARM_DOCUMENT_PATH")
	mustBind("serve_addr", "CVSWARM_SERVE_ADDR")
	mustBind("tracing.enabled", "CVSWARM_TRACING")
	mustBind("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "********"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars
// or fewer are fully masked to prevent substring matching; longer ones
// keep the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
