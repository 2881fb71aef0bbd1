package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/brunobiangulo/alchemy/internal/filecache"
	"github.com/brunobiangulo/alchemy/internal/store"
)

// resumeRestartSteps are checkpoints early enough that resuming just
// means starting a brand new iteration from scratch: re-ingestion is
// idempotent, so nothing is lost by redoing those stages.
var resumeRestartSteps = map[Step]bool{
	StepInitialization:    true,
	StepPrepareSourceData: true,
	StepProcessData:       true,
}

// Resume looks up the newest checkpoint across every iteration and
// either restarts a fresh iteration (if the checkpoint predates
// component initialization) or re-enters the existing iteration's
// workflow from parse_intent onward, reusing its store and cache. An
// empty query means "pick up where the interrupted run left off": the
// query persisted to resume_info.json at cancellation (or, failing
// that, the latest recorded iteration's query) is used.
func (o *Orchestrator) Resume(ctx context.Context, query string) ProcessResult {
	o.cancelRequested.Store(false)

	cp, found, err := o.latestCheckpoint()
	if err != nil {
		return o.errorResult(query, 0, err)
	}
	if !found {
		return o.errorResult(query, 0, ErrCheckpointNotFound)
	}

	if query == "" {
		query = o.savedQuery()
	}

	if resumeRestartSteps[cp.Step] {
		return o.process(ctx, query, nil, 0)
	}
	return o.resumeFromIteration(ctx, cp.Iteration, query)
}

// savedQuery recovers the query of the interrupted run: the one written
// to resume_info.json when the cancellation checkpoint was taken,
// falling back to the latest iteration summary in status.json.
func (o *Orchestrator) savedQuery() string {
	var info ResumeInfo
	if ok, err := loadJSON(filepath.Join(o.layout.TaskDir, "resume_info.json"), &info); err == nil && ok && info.Query != "" {
		return info.Query
	}
	status, err := o.loadTaskStatus()
	if err == nil && len(status.Iterations) > 0 {
		return status.Iterations[len(status.Iterations)-1].Query
	}
	return ""
}

func (o *Orchestrator) resumeFromIteration(ctx context.Context, iteration int, query string) ProcessResult {
	iterDir := o.layout.IterDir(iteration)
	dataDir := filepath.Join(iterDir, "data")
	dbPath := filepath.Join(dataDir, "unified_storage.db")
	cachePath := filepath.Join(dataDir, "file_cache.json")

	st, err := store.Open(dbPath, o.embeddingDim)
	if err != nil {
		return o.errorResult(query, iteration, err)
	}
	defer st.Close()

	cache, err := filecache.Open(cachePath, filecache.Options{Logger: o.logger})
	if err != nil {
		return o.errorResult(query, iteration, err)
	}
	defer cache.Close()

	embedder := embedderAdapter{dispatcher: o.dispatcher, model: o.embeddingModel}

	o.currentStep = StepExecuteWorkflow
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}

	result := o.runWorkflow(ctx, iterDir, iteration, query, st, embedder, 0)
	return o.finalizeIteration(ctx, iterDir, iteration, query, result, 0)
}
