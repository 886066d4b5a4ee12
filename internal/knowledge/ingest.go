package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryInterval is how often a blocked ingest retries the file lock.
const lockRetryInterval = 250 * time.Millisecond

// Ingest loads the document at path, chunks it, embeds each chunk, and
// upserts the chunks into the store's collection. Ingest is idempotent:
// when the collection already holds passages and force is false it skips
// the work entirely. With force it purges the collection first.
//
// A file lock serializes concurrent ingests of the same collection so two
// processes never embed the corpus twice.
func (s *Store) Ingest(ctx context.Context, path string, force bool) (int, error) {
	lock, err := s.acquireIngestLock(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("release ingest lock", "error", err)
		}
	}()

	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 && !force {
		s.logger.Info("collection already populated, skipping ingest",
			"collection", s.collection, "documents", count)
		return 0, nil
	}
	if count > 0 {
		if err := s.Purge(ctx); err != nil {
			return 0, err
		}
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return 0, fmt.Errorf("read document %q: %w", path, err)
	}

	chunks := Chunk(string(raw), ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %q produced no chunks", path)
	}

	source := filepath.Base(path)
	for i, chunk := range chunks {
		doc := Document{
			ID:      fmt.Sprintf("%s:%s:%04d", s.collection, source, i),
			Content: chunk,
			Metadata: map[string]string{
				"source_type": "file",
				"source":      source,
				"chunk":       fmt.Sprintf("%d", i),
			},
		}
		if err := s.Add(ctx, doc); err != nil {
			return i, fmt.Errorf("ingest chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}

	s.logger.Info("ingested document",
		"collection", s.collection, "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// acquireIngestLock takes an exclusive file lock scoped to the collection.
func (s *Store) acquireIngestLock(ctx context.Context) (*flock.Flock, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	} else {
		dir = filepath.Join(dir, ".cvswarm")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}

	lock := flock.New(filepath.Join(dir, "ingest-"+s.collection+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("ingest lock held by another process")
	}
	return lock, nil
}
