// Package intent implements the intent parser: turning a natural
// language query into structured and vector search conditions via two
// concurrent LLM calls, backed by a TTL+LRU query cache.
package intent

import "time"

// TimeRange bounds a StructuredCondition's date filter.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// StructuredCondition is one structured sub-condition; one intent may
// yield many, OR-combined at the plan level.
type StructuredCondition struct {
	TimeRange  *TimeRange
	FileTypes  []string
	Keyword    string
	Exclusions []string
}

// VectorCondition is one semantic sub-condition; multiple are allowed.
type VectorCondition struct {
	ReferenceText       string
	SimilarityThreshold float64
	TopK                int
}

// Intent is the parser's output: the original query plus the
// structured and vector conditions derived from it.
type Intent struct {
	OriginalQuery        string
	StructuredConditions []StructuredCondition
	VectorConditions     []VectorCondition
}

const (
	defaultSimilarityThreshold = 0.6
	defaultTopK                = 5
	maxKeywords                = 3
	maxReferenceTexts          = 3
)
