// Package search implements the search engine: structured predicate
// queries over the unified store and vector queries over the in-memory
// index.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/brunobiangulo/alchemy/internal/ingest"
	"github.com/brunobiangulo/alchemy/internal/store"
)

const defaultStructuredLimit = 10

// StructuredQuery is one of the three shapes the planner emits.
type StructuredQuery struct {
	Kind      string // "text", "file", or "date"
	Text      string
	Extension string
	Start     time.Time
	End       time.Time
}

// VectorQuery requests the topK nearest neighbors to an embedded
// reference text, filtered by a minimum similarity threshold.
type VectorQuery struct {
	ReferenceText       string
	TopK                int
	SimilarityThreshold float64
}

// Engine exposes the structured and vector query operations.
type Engine struct {
	store    *store.Store
	embedder ingest.Embedder
}

// New builds a search Engine over a unified store and an embedder used
// to turn vector query reference text into a query vector.
func New(st *store.Store, embedder ingest.Embedder) *Engine {
	return &Engine{store: st, embedder: embedder}
}

// Structured runs one of the three structured query shapes. All string
// filtering is case-insensitive.
func (e *Engine) Structured(ctx context.Context, q StructuredQuery) ([]ingest.Record, error) {
	switch q.Kind {
	case "text":
		return e.store.SearchText(ctx, q.Text, defaultStructuredLimit)
	case "file":
		return e.store.SearchByFileType(ctx, q.Extension, defaultStructuredLimit)
	case "date":
		return e.store.SearchByDateRange(ctx, q.Start, q.End)
	default:
		return nil, fmt.Errorf("search: unknown structured query kind %q", q.Kind)
	}
}

// Vector embeds the reference text, searches the vector index, and
// drops hits below the similarity threshold.
func (e *Engine) Vector(ctx context.Context, q VectorQuery) ([]store.ScoredRecord, error) {
	if q.ReferenceText == "" {
		return nil, nil
	}

	queryVector, err := e.embedder.Embed(ctx, q.ReferenceText)
	if err != nil {
		return nil, fmt.Errorf("embedding reference text: %w", err)
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}

	hits := e.store.VectorSearch(queryVector, topK)

	var kept []store.ScoredRecord
	for _, h := range hits {
		if h.Similarity < q.SimilarityThreshold {
			continue
		}
		kept = append(kept, h)
	}
	return kept, nil
}
