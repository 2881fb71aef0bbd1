package exec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/internal/ingest"
	"github.com/brunobiangulo/alchemy/internal/plan"
	"github.com/brunobiangulo/alchemy/internal/search"
	"github.com/brunobiangulo/alchemy/internal/store"
)

type stubEmbedder struct{ vector []float32 }

func (e stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vector, nil
}

func TestExecuteDedupesAcrossStructuredAndVector(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "alchemy.db"), 4)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Save(ctx, []ingest.Record{{
		RecordID: "r1", FilePath: "/docs/a.txt", FileName: "a.txt", FileType: "txt",
		ProcessedAt: time.Now().UTC(),
		Data:        map[string]string{"content": "widget manual"},
		Vector:      []float32{1, 0, 0, 0},
	}}))

	engine := search.New(st, stubEmbedder{vector: []float32{1, 0, 0, 0}})
	executor := New(engine, nil)

	p := plan.SearchPlan{
		OriginalQuery: "widget",
		StructuredQueries: []search.StructuredQuery{{Kind: "text", Text: "widget"}},
		VectorQueries:     []search.VectorQuery{{ReferenceText: "widget", TopK: 5, SimilarityThreshold: 0}},
	}

	results := executor.Execute(ctx, p)
	require.Equal(t, results.Stats.Total, results.Stats.StructuredCount+results.Stats.VectorCount)
	require.Equal(t, 1, results.Stats.StructuredCount)
	require.Equal(t, 0, results.Stats.VectorCount, "duplicate content already seen via structured query must be dropped from vector results")
}

func TestExecuteSkipsFailedQueries(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "alchemy.db"), 4)
	require.NoError(t, err)
	defer st.Close()

	engine := search.New(st, stubEmbedder{})
	executor := New(engine, nil)

	p := plan.SearchPlan{
		OriginalQuery:     "q",
		StructuredQueries: []search.StructuredQuery{{Kind: "bogus"}},
	}

	results := executor.Execute(context.Background(), p)
	require.Equal(t, 0, results.Stats.Total)
	require.Empty(t, results.Metadata.Error)
}
