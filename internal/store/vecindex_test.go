package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/internal/ingest"
)

func TestVectorIndexTombstonesRemovedRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []ingest.Record{sampleRecord("/docs/a.txt", 0, []float32{1, 0, 0, 0})}))
	require.Len(t, s.VectorSearch([]float32{1, 0, 0, 0}, 5), 1)

	require.NoError(t, s.RemoveByPaths(ctx, []string{"/docs/a.txt"}))
	require.Empty(t, s.VectorSearch([]float32{1, 0, 0, 0}, 5))
}

func TestVectorIndexSurvivesReload(t *testing.T) {
	dbPath := t.TempDir() + "/alchemy.db"

	s1, err := Open(dbPath, 4)
	require.NoError(t, err)
	require.NoError(t, s1.Save(context.Background(), []ingest.Record{
		sampleRecord("/docs/a.txt", 0, []float32{1, 0, 0, 0}),
	}))
	require.NoError(t, s1.Close())

	s2, err := Open(dbPath, 4)
	require.NoError(t, err)
	defer s2.Close()

	results := s2.VectorSearch([]float32{1, 0, 0, 0}, 5)
	require.Len(t, results, 1)
	require.Equal(t, "/docs/a.txt", results[0].Record.FilePath)
}
