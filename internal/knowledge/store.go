// Package knowledge stores document passages with vector embeddings in
// PostgreSQL and retrieves the passages most similar to a question. It is
// the grounding corpus behind the curriculum responder.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/cvswarm/cvswarm/internal/log"
)

const defaultSearchTimeout = 10 * time.Second

// Embedder is the slice of the Genkit embedder API the store needs.
// Interfaces are defined by the consumer, so tests can substitute a
// deterministic implementation.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// Querier defines the database operations on the documents table.
// The production implementation runs pgx queries; tests supply a mock.
type Querier interface {
	// UpsertDocument inserts or replaces a passage in a collection.
	UpsertDocument(ctx context.Context, collection string, doc Document, embedding pgvector.Vector) error

	// SearchCollection returns the passages of one collection closest to
	// the query embedding, best first.
	SearchCollection(ctx context.Context, collection string, query pgvector.Vector, limit int) ([]Result, error)

	// CountCollection counts the passages stored for a collection.
	CountCollection(ctx context.Context, collection string) (int64, error)

	// PurgeCollection deletes every passage of a collection.
	PurgeCollection(ctx context.Context, collection string) error
}

// Store retrieves grounding passages by vector similarity.
//
// Store is safe for concurrent use.
type Store struct {
	queries    Querier
	embedder   Embedder
	collection string
	topK       int
	threshold  float32
	logger     log.Logger
}

// Options are the retrieval defaults carried by a Store. Per-call
// SearchOptions override them.
type Options struct {
	Collection string
	TopK       int
	Threshold  float32
}

// New creates a Store over the given querier and embedder.
func New(queries Querier, embedder Embedder, opts Options, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		queries:    queries,
		embedder:   embedder,
		collection: opts.Collection,
		topK:       opts.TopK,
		threshold:  opts.Threshold,
		logger:     logger,
	}
}

// Add embeds a passage and upserts it into the store's collection.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed document %q: %w", doc.ID, err)
	}
	if err := s.queries.UpsertDocument(ctx, s.collection, doc, embedding); err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.ID, err)
	}
	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search returns the passages most similar to the query, ordered by
// similarity, dropping hits below the similarity threshold.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := &searchConfig{topK: s.topK, threshold: s.threshold, timeout: defaultSearchTimeout}
	for _, opt := range opts {
		opt(cfg)
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.queries.SearchCollection(queryCtx, s.collection, embedding, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		if r.Similarity < cfg.threshold {
			continue
		}
		results = append(results, r)
	}
	s.logger.Debug("searched collection",
		"collection", s.collection, "hits", len(rows), "kept", len(results))
	return results, nil
}

// RetrieveContext returns the retained passages joined into a single
// grounding block, or the empty string when nothing clears the threshold.
func (s *Store) RetrieveContext(ctx context.Context, query string, opts ...SearchOption) (string, error) {
	results, err := s.Search(ctx, query, opts...)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Document.Content
	}
	return strings.Join(parts, "\n\n"), nil
}

// Count returns the number of passages stored for the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.queries.CountCollection(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("count collection %q: %w", s.collection, err)
	}
	return int(n), nil
}

// Purge deletes every passage in the collection.
func (s *Store) Purge(ctx context.Context) error {
	if err := s.queries.PurgeCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("purge collection %q: %w", s.collection, err)
	}
	s.logger.Info("purged collection", "collection", s.collection)
	return nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
