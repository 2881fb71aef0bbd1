package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/internal/ingest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "alchemy.db")
	s, err := Open(dbPath, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(path string, subID int, vector []float32) ingest.Record {
	return ingest.Record{
		RecordID:    path + "#" + string(rune('0'+subID)),
		FilePath:    path,
		FileName:    filepath.Base(path),
		FileType:    "txt",
		ProcessedAt: time.Now().UTC(),
		SubID:       subID,
		Data:        map[string]string{"content": "hello world"},
		Vector:      vector,
	}
}

func TestSaveAndGetByPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []ingest.Record{
		sampleRecord("/docs/a.txt", 0, []float32{1, 0, 0, 0}),
		sampleRecord("/docs/a.txt", 1, []float32{0, 1, 0, 0}),
	}
	require.NoError(t, s.Save(ctx, records))

	got, err := s.GetByPath(ctx, "/docs/a.txt")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "hello world", got[0].Data["content"])
}

func TestSaveReplacesExistingRecordsForPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []ingest.Record{sampleRecord("/docs/a.txt", 0, nil)}))
	require.NoError(t, s.Save(ctx, []ingest.Record{sampleRecord("/docs/a.txt", 0, nil)}))

	got, err := s.GetByPath(ctx, "/docs/a.txt")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestRemoveByPaths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []ingest.Record{sampleRecord("/docs/a.txt", 0, nil)}))
	require.NoError(t, s.RemoveByPaths(ctx, []string{"/docs/a.txt"}))

	got, err := s.GetByPath(ctx, "/docs/a.txt")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestVectorSearchOrdersByDistance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []ingest.Record{
		sampleRecord("/docs/a.txt", 0, []float32{1, 0, 0, 0}),
		sampleRecord("/docs/b.txt", 0, []float32{0, 1, 0, 0}),
	}
	require.NoError(t, s.Save(ctx, records))

	results := s.VectorSearch([]float32{1, 0, 0, 0}, 2)
	require.NotEmpty(t, results)
	require.Equal(t, "/docs/a.txt", results[0].Record.FilePath)
	require.InDelta(t, 10.0, results[0].Similarity, 0.001)
}

func TestAllPathsAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []ingest.Record{
		sampleRecord("/docs/a.txt", 0, nil),
		sampleRecord("/docs/b.txt", 0, nil),
	}))

	paths, err := s.AllPaths(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/docs/a.txt", "/docs/b.txt"}, paths)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
