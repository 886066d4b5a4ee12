package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cvswarm/cvswarm/internal/log"
)

// PgxQuerier runs the documents-table queries against a pgx pool.
type PgxQuerier struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewQuerier creates the production Querier over the given pool.
func NewQuerier(pool *pgxpool.Pool, logger log.Logger) *PgxQuerier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PgxQuerier{pool: pool, logger: logger}
}

func (q *PgxQuerier) UpsertDocument(ctx context.Context, collection string, doc Document, embedding pgvector.Vector) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = q.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, content, embedding, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     embedding = EXCLUDED.embedding,
		     metadata = EXCLUDED.metadata`,
		doc.ID, collection, doc.Content, embedding, metadata)
	return err
}

func (q *PgxQuerier) SearchCollection(ctx context.Context, collection string, query pgvector.Vector, limit int) ([]Result, error) {
	// <=> is pgvector cosine distance; similarity = 1 - distance.
	rows, err := q.pool.Query(ctx,
		`SELECT id, content, metadata, created_at, 1 - (embedding <=> $2) AS similarity
		 FROM documents
		 WHERE collection = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		collection, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metadata []byte
		if err := rows.Scan(&r.Document.ID, &r.Document.Content, &metadata,
			&r.Document.CreatedAt, &r.Similarity); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &r.Document.Metadata); err != nil {
			q.logger.Warn("malformed document metadata", "document_id", r.Document.ID, "error", err)
			r.Document.Metadata = map[string]string{}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (q *PgxQuerier) CountCollection(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1`, collection).Scan(&n)
	return n, err
}

func (q *PgxQuerier) PurgeCollection(ctx context.Context, collection string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1`, collection)
	return err
}
