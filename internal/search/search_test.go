package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/internal/ingest"
	"github.com/brunobiangulo/alchemy/internal/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func newTestEngine(t *testing.T, embedder ingest.Embedder) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "alchemy.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, embedder), st
}

func TestStructuredTextSearch(t *testing.T) {
	eng, st := newTestEngine(t, fakeEmbedder{})
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, []ingest.Record{{
		RecordID: "r1", FilePath: "/docs/a.txt", FileName: "a.txt", FileType: "txt",
		ProcessedAt: time.Now().UTC(), Data: map[string]string{"content": "the quick brown fox"},
	}}))

	results, err := eng.Structured(ctx, StructuredQuery{Kind: "text", Text: "QUICK"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestStructuredUnknownKind(t *testing.T) {
	eng, _ := newTestEngine(t, fakeEmbedder{})
	_, err := eng.Structured(context.Background(), StructuredQuery{Kind: "bogus"})
	require.Error(t, err)
}

func TestVectorSearchAppliesThreshold(t *testing.T) {
	eng, st := newTestEngine(t, fakeEmbedder{vector: []float32{1, 0, 0, 0}})
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, []ingest.Record{{
		RecordID: "r1", FilePath: "/docs/a.txt", FileName: "a.txt", FileType: "txt",
		ProcessedAt: time.Now().UTC(), Data: map[string]string{"content": "x"},
		Vector: []float32{1, 0, 0, 0},
	}}))

	results, err := eng.Vector(ctx, VectorQuery{ReferenceText: "query", TopK: 5, SimilarityThreshold: 9})
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = eng.Vector(ctx, VectorQuery{ReferenceText: "query", TopK: 5, SimilarityThreshold: 100})
	require.NoError(t, err)
	require.Empty(t, results)
}
