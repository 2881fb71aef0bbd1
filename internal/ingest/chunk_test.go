package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultChunkParamsBySize(t *testing.T) {
	require.Equal(t, ChunkParams{Size: 1000, Overlap: 200}, defaultChunkParams(100))
	require.Equal(t, ChunkParams{Size: 2000, Overlap: 400}, defaultChunkParams(2<<20))
	require.Equal(t, ChunkParams{Size: 5000, Overlap: 500}, defaultChunkParams(11<<20))
}

func TestChunkEmptyText(t *testing.T) {
	chunks, truncated := Chunk("", ChunkParams{Size: 10, Overlap: 2})
	require.Nil(t, chunks)
	require.False(t, truncated)
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	chunks, truncated := Chunk("hello world", ChunkParams{Size: 1000, Overlap: 200})
	require.Equal(t, []string{"hello world"}, chunks)
	require.False(t, truncated)
}

func TestChunkOverlapProducesMultipleFragments(t *testing.T) {
	text := strings.Repeat("a", 50)
	chunks, truncated := Chunk(text, ChunkParams{Size: 20, Overlap: 5})
	require.False(t, truncated)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.NotEmpty(t, c)
	}
}

func TestChunkSnapsToSentenceBoundary(t *testing.T) {
	text := "First sentence ends here. Second sentence follows and runs a bit longer than the first one did."
	chunks, truncated := Chunk(text, ChunkParams{Size: 30, Overlap: 5})
	require.False(t, truncated)
	require.True(t, strings.HasSuffix(chunks[0], "here."))
}

func TestChunkRespectsCapAndReportsTruncation(t *testing.T) {
	text := strings.Repeat("x", maxChunksPerDocument*3+10)
	chunks, truncated := Chunk(text, ChunkParams{Size: 3, Overlap: 0})
	require.True(t, truncated)
	require.Len(t, chunks, maxChunksPerDocument)
}

func TestChunkZeroSizeFallsBackToDefaultParams(t *testing.T) {
	chunks, truncated := Chunk("short text", ChunkParams{})
	require.False(t, truncated)
	require.Equal(t, []string{"short text"}, chunks)
}

func TestSnapToSentenceBoundaryNoMarkerInWindow(t *testing.T) {
	runes := []rune(strings.Repeat("a", 300))
	_, ok := snapToSentenceBoundary(runes, 0, 250)
	require.False(t, ok)
}
