package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortTextIsOneChunk(t *testing.T) {
	chunks := Chunk("a short document", ChunkSize, ChunkOverlap)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0])
}

func TestChunk_EmptyText(t *testing.T) {
	assert.Empty(t, Chunk("", ChunkSize, ChunkOverlap))
	assert.Empty(t, Chunk("\n\n  \n\n", ChunkSize, ChunkOverlap))
}

func TestChunk_PrefersParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("word ", 30)
	text := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	chunks := Chunk(text, 200, 0)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 200)
		assert.False(t, strings.HasPrefix(c, " "))
	}
}

func TestChunk_SplitsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Chunk(text, 1000, 0)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[2], 500)
}

func TestChunk_OverlapCarriesTrailingText(t *testing.T) {
	first := strings.Repeat("alpha ", 30)
	second := strings.Repeat("beta ", 30)
	text := strings.TrimSpace(first) + "\n\n" + strings.TrimSpace(second)

	chunks := Chunk(text, 180, 40)
	require.Greater(t, len(chunks), 1)
	// The second chunk starts with text carried over from the first.
	assert.Contains(t, chunks[1], "alpha")
}
