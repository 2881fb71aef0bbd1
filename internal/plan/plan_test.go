package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/internal/intent"
)

func TestBuildEmitsStructuredAndVectorQueries(t *testing.T) {
	in := intent.Intent{
		OriginalQuery: "q",
		StructuredConditions: []intent.StructuredCondition{
			{Keyword: "widget"},
		},
		VectorConditions: []intent.VectorCondition{
			{ReferenceText: "widget specs", SimilarityThreshold: 0.6, TopK: 5},
		},
	}

	p, err := Build(in)
	require.NoError(t, err)
	require.Len(t, p.StructuredQueries, 1)
	require.Equal(t, "text", p.StructuredQueries[0].Kind)
	require.Len(t, p.VectorQueries, 1)
	require.Equal(t, "q", p.OriginalQuery)
}

func TestBuildPrefersKeywordOverFileType(t *testing.T) {
	in := intent.Intent{
		StructuredConditions: []intent.StructuredCondition{
			{Keyword: "widget", FileTypes: []string{"pdf"}},
		},
	}

	p, err := Build(in)
	require.NoError(t, err)
	require.Len(t, p.StructuredQueries, 1)
	require.Equal(t, "text", p.StructuredQueries[0].Kind)
}

func TestBuildSkipsEmptyReferenceText(t *testing.T) {
	in := intent.Intent{
		VectorConditions: []intent.VectorCondition{{ReferenceText: ""}},
	}
	_, err := Build(in)
	require.ErrorIs(t, err, ErrNoValidPlan)
}

func TestBuildFailsWithNoConditions(t *testing.T) {
	_, err := Build(intent.Intent{OriginalQuery: "empty"})
	require.ErrorIs(t, err, ErrNoValidPlan)
}
