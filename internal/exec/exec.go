// Package exec implements the search executor: runs a SearchPlan against
// the search engine sequentially, deduplicating by content fingerprint
// and assembling the result envelope.
package exec

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/alchemy/internal/ingest"
	"github.com/brunobiangulo/alchemy/internal/plan"
	"github.com/brunobiangulo/alchemy/internal/search"
)

// VectorHit pairs a record with its vector similarity score.
type VectorHit struct {
	Record     ingest.Record
	Similarity float64
}

// Stats summarizes the result counts, with the invariant
// Total == StructuredCount + VectorCount.
type Stats struct {
	StructuredCount int
	VectorCount     int
	Total           int
}

// Insights is reserved for future enrichment and starts empty.
type Insights struct {
	KeyConcepts       []string
	Relationships     []string
	Timeline          []string
	ImportanceRanking []string
}

// Metadata carries provenance about how a SearchResults was produced.
type Metadata struct {
	OriginalQuery string
	GeneratedAt   time.Time
	ExecutionTime time.Duration
	Error         string
}

// SearchResults is the executor's result envelope.
type SearchResults struct {
	Structured []ingest.Record
	Vector     []VectorHit
	Stats      Stats
	Insights   Insights
	Metadata   Metadata
}

// Executor runs plans against a search.Engine.
type Executor struct {
	engine *search.Engine
	logger *slog.Logger
}

// New builds an Executor over a search engine.
func New(engine *search.Engine, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{engine: engine, logger: logger}
}

// Execute runs every query in p sequentially. Per-query failures are
// logged and skipped; they never abort the plan. Vector hits below
// their query's similarity threshold are dropped before deduplication,
// and deduplication (by content fingerprint) applies across both the
// structured and vector result streams, in that order, thresholding
// before deduplicating.
//
// It never returns an error to the caller and never sets
// Metadata.Error: a plan whose every query fails yields a valid, empty
// envelope. The envelope carrying an error string is built by Failed.
func (e *Executor) Execute(ctx context.Context, p plan.SearchPlan) SearchResults {
	start := time.Now()
	seen := make(map[string]struct{})

	var structured []ingest.Record
	for _, q := range p.StructuredQueries {
		records, err := e.engine.Structured(ctx, q)
		if err != nil {
			e.logger.Warn("structured query failed, skipping", "kind", q.Kind, "error", err)
			continue
		}
		for _, r := range records {
			if markSeen(seen, r.Data) {
				structured = append(structured, r)
			}
		}
	}

	var vector []VectorHit
	for _, q := range p.VectorQueries {
		hits, err := e.engine.Vector(ctx, q)
		if err != nil {
			e.logger.Warn("vector query failed, skipping", "error", err)
			continue
		}
		for _, h := range hits {
			if markSeen(seen, h.Record.Data) {
				vector = append(vector, VectorHit{Record: h.Record, Similarity: h.Similarity})
			}
		}
	}

	stats := Stats{
		StructuredCount: len(structured),
		VectorCount:     len(vector),
		Total:           len(structured) + len(vector),
	}

	return SearchResults{
		Structured: structured,
		Vector:     vector,
		Stats:      stats,
		Metadata: Metadata{
			OriginalQuery: p.OriginalQuery,
			GeneratedAt:   start.UTC(),
			ExecutionTime: time.Since(start),
		},
	}
}

// Failed builds the empty-envelope-with-error result returned when
// the plan itself could not be built or run at all.
func Failed(originalQuery string, err error) SearchResults {
	return SearchResults{
		Metadata: Metadata{
			OriginalQuery: originalQuery,
			GeneratedAt:   time.Now().UTC(),
			Error:         err.Error(),
		},
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// markSeen computes the content fingerprint for data and, if it has
// not been seen before in this invocation, records it and returns true.
func markSeen(seen map[string]struct{}, data map[string]string) bool {
	fp := fingerprint(data)
	if _, ok := seen[fp]; ok {
		return false
	}
	seen[fp] = struct{}{}
	return true
}

// fingerprint is the hex MD5 of the lowercased, whitespace-normalized
// data field.
func fingerprint(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, data[k])
	}

	normalized := whitespaceRun.ReplaceAllString(strings.ToLower(b.String()), " ")
	sum := md5.Sum([]byte(strings.TrimSpace(normalized)))
	return hex.EncodeToString(sum[:])
}
