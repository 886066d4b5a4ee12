package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngest_ChunksAndStores(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	q := &mockQuerier{}
	store := newTestStore(q, &fakeEmbedder{})
	path := writeDoc(t, strings.Repeat("experience line\n\n", 100))

	n, err := store.Ingest(context.Background(), path, false)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Len(t, q.upserted, n)
	assert.Equal(t, "cv:cv.md:0000", q.upserted[0].ID)
	assert.Equal(t, "file", q.upserted[0].Metadata["source_type"])
}

func TestIngest_SkipsWhenPopulated(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	q := &mockQuerier{count: 42}
	store := newTestStore(q, &fakeEmbedder{})
	path := writeDoc(t, "content")

	n, err := store.Ingest(context.Background(), path, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.upserted)
	assert.Zero(t, q.purged)
}

func TestIngest_ForceRebuild(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	q := &mockQuerier{count: 42}
	store := newTestStore(q, &fakeEmbedder{})
	path := writeDoc(t, "fresh content")

	n, err := store.Ingest(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.purged)
}

func TestIngest_MissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := newTestStore(&mockQuerier{}, &fakeEmbedder{})

	_, err := store.Ingest(context.Background(), "/does/not/exist.md", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read document")
}
