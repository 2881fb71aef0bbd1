package alchemy

import "errors"

// Error taxonomy for the alchemy engine. Local recovery
// happens wherever a partial result is still useful (see internal/intent,
// internal/exec); these sentinels are for the cases that must surface to
// the orchestrator or the CLI caller.
var (
	// ErrNoValidPlan names an intent that yields neither a structured
	// nor a vector query. The planner returns its own plan.ErrNoValidPlan
	// (internal/plan); nothing returns this value.
	ErrNoValidPlan = errors.New("alchemy: no valid search plan")

	// ErrCancelled names a run stopped by the cooperative cancellation
	// flag at a step boundary. Process and Resume report that as a
	// ProcessResult with Status "cancelled"; nothing returns this value.
	ErrCancelled = errors.New("alchemy: process cancelled")

	// ErrCheckpointNotFound names a resume against a task with no
	// checkpoint.json under its iterations. Resume reports that as a
	// ProcessResult with Status "error"; nothing returns this value.
	ErrCheckpointNotFound = errors.New("alchemy: no checkpoint found to resume from")

	// ErrTaskNotFound is returned (wrapped) by Engine.OpenTask for an
	// empty alchemy_id. Registry lookups report unknown ids with their
	// own errors, which do not wrap this value.
	ErrTaskNotFound = errors.New("alchemy: task not found")

	// ErrEmbeddingFailed names an embedding-generation failure. The
	// ingestion path logs such failures and stores the record without a
	// vector; nothing returns this value.
	ErrEmbeddingFailed = errors.New("alchemy: embedding generation failed")

	// ErrLLMUnavailable names a model with no usable API key. The model
	// registry (internal/llmdispatch) reports that case with its own
	// errors; nothing returns this value.
	ErrLLMUnavailable = errors.New("alchemy: LLM provider unavailable")

	// ErrInvalidConfig is returned for invalid configuration values at
	// startup (missing model config, unreadable workspace).
	ErrInvalidConfig = errors.New("alchemy: invalid configuration")
)
