// Package plan implements the search planner: a pure function from an
// Intent to a SearchPlan, choosing one structured query shape per
// condition in priority order keyword -> file -> date.
package plan

import (
	"errors"
	"time"

	"github.com/brunobiangulo/alchemy/internal/intent"
	"github.com/brunobiangulo/alchemy/internal/search"
)

// ErrNoValidPlan is returned when an Intent yields neither a structured
// nor a vector query.
var ErrNoValidPlan = errors.New("plan: no valid plan synthesized")

// SearchPlan is the planner's output: the queries to execute plus
// bookkeeping metadata.
type SearchPlan struct {
	Steps             []string
	StructuredQueries []search.StructuredQuery
	VectorQueries     []search.VectorQuery
	OriginalQuery     string
	GeneratedAt       time.Time
}

// Build turns an Intent into a SearchPlan. For each StructuredCondition
// it emits at most one structured query, preferring keyword, then file
// type, then date range. For each VectorCondition with a non-empty
// reference text it emits a vector query. An Intent that yields neither
// kind of query fails with ErrNoValidPlan.
func Build(in intent.Intent) (SearchPlan, error) {
	p := SearchPlan{
		OriginalQuery: in.OriginalQuery,
		GeneratedAt:   time.Now().UTC(),
	}

	for _, cond := range in.StructuredConditions {
		switch {
		case cond.Keyword != "":
			p.StructuredQueries = append(p.StructuredQueries, search.StructuredQuery{
				Kind: "text",
				Text: cond.Keyword,
			})
			p.Steps = append(p.Steps, "structured:text")
		case len(cond.FileTypes) > 0:
			for _, ext := range cond.FileTypes {
				p.StructuredQueries = append(p.StructuredQueries, search.StructuredQuery{
					Kind:      "file",
					Extension: ext,
				})
			}
			p.Steps = append(p.Steps, "structured:file")
		case cond.TimeRange != nil:
			p.StructuredQueries = append(p.StructuredQueries, search.StructuredQuery{
				Kind:  "date",
				Start: cond.TimeRange.Start,
				End:   cond.TimeRange.End,
			})
			p.Steps = append(p.Steps, "structured:date")
		}
	}

	for _, cond := range in.VectorConditions {
		if cond.ReferenceText == "" {
			continue
		}
		p.VectorQueries = append(p.VectorQueries, search.VectorQuery{
			ReferenceText:       cond.ReferenceText,
			TopK:                cond.TopK,
			SimilarityThreshold: cond.SimilarityThreshold,
		})
		p.Steps = append(p.Steps, "vector")
	}

	if len(p.StructuredQueries) == 0 && len(p.VectorQueries) == 0 {
		return SearchPlan{}, ErrNoValidPlan
	}
	return p, nil
}
