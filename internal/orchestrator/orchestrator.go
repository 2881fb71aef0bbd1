// Package orchestrator implements the top-level alchemy process: a
// checkpointed, resumable, cancellable pipeline that wires ingestion,
// storage, retrieval, and artifact generation together for one query
// against one workspace.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/brunobiangulo/alchemy/internal/artifact"
	"github.com/brunobiangulo/alchemy/internal/exec"
	"github.com/brunobiangulo/alchemy/internal/filecache"
	"github.com/brunobiangulo/alchemy/internal/ingest"
	"github.com/brunobiangulo/alchemy/internal/intent"
	"github.com/brunobiangulo/alchemy/internal/llmdispatch"
	"github.com/brunobiangulo/alchemy/internal/plan"
	"github.com/brunobiangulo/alchemy/internal/registry"
	"github.com/brunobiangulo/alchemy/internal/search"
	"github.com/brunobiangulo/alchemy/internal/store"
	"github.com/brunobiangulo/alchemy/llm"
)

// maxOptimizationDepth bounds the recursive self-optimization chain a
// single top-level Process call may trigger.
const maxOptimizationDepth = 3

// Dispatcher is the subset of llmdispatch.Dispatcher the orchestrator
// needs to drive intent parsing, artifact generation, and embedding.
type Dispatcher interface {
	Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error)
	Stream(ctx context.Context, model string, messages []llm.Message) (<-chan llmdispatch.StreamEvent, <-chan error)
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Config configures a new Orchestrator.
type Config struct {
	WorkDir        string
	AlchemyID      string // generated from the current time if empty
	Dispatcher     Dispatcher
	ReasoningModel string
	GeneratorModel string
	EmbeddingModel string
	EmbeddingDim   int
	Registry       *registry.Registry // optional; nil disables task registration
	Logger         *slog.Logger
}

// Orchestrator runs one alchemy task end to end, across iterations.
type Orchestrator struct {
	layout Layout
	events *EventBus
	logger *slog.Logger

	dispatcher     Dispatcher
	reasoningModel string
	generatorModel string
	embeddingModel string
	embeddingDim   int
	registry       *registry.Registry

	currentStep     Step
	cancelRequested atomic.Bool
}

// New builds an Orchestrator and creates its task directory.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AlchemyID == "" {
		cfg.AlchemyID = fmt.Sprintf("alchemy_%s", time.Now().UTC().Format("20060102_150405"))
	}

	layout, err := NewLayout(cfg.WorkDir, cfg.AlchemyID)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		layout:         layout,
		events:         NewEventBus(),
		logger:         cfg.Logger,
		dispatcher:     cfg.Dispatcher,
		reasoningModel: cfg.ReasoningModel,
		generatorModel: cfg.GeneratorModel,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDim,
		registry:       cfg.Registry,
		currentStep:    StepInitialization,
	}

	if o.registry != nil {
		if _, ok, err := o.registry.GetTask(o.layout.AlchemyID); err != nil {
			return nil, err
		} else if !ok {
			if _, err := o.registry.RegisterTask(o.layout.AlchemyID, "", ""); err != nil {
				return nil, err
			}
		}
	}

	return o, nil
}

// AlchemyID returns the task identifier.
func (o *Orchestrator) AlchemyID() string { return o.layout.AlchemyID }

// Subscribe registers an event callback; async subscribers are
// dispatched off a dedicated single-worker pool so they never block
// Publish and never reorder relative to themselves.
func (o *Orchestrator) Subscribe(eventType EventType, callback func(Event), async bool) {
	o.events.Subscribe(eventType, callback, async)
}

// Cancel requests cancellation of the currently running (or next)
// Process call. It is checked at every step boundary.
func (o *Orchestrator) Cancel() {
	o.cancelRequested.Store(true)
	o.events.Publish(CancellationRequested, map[string]any{"alchemy_id": o.layout.AlchemyID})
}

func (o *Orchestrator) checkCancellation() error {
	if o.cancelRequested.Load() {
		return ErrCancelled
	}
	return nil
}

// embedderAdapter turns the dispatcher's model-parameterized Embed into
// the single-argument ingest.Embedder / search engine embedder shape.
type embedderAdapter struct {
	dispatcher Dispatcher
	model      string
}

func (e embedderAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.dispatcher.Embed(ctx, e.model, text)
}

// ProcessResult is what Process and Resume return. It never carries a
// Go error: failures and cancellations are reported as a Status so the
// caller always gets a complete, serializable outcome.
type ProcessResult struct {
	Status      string // "success", "error", or "cancelled"
	Message     string
	AlchemyID   string
	Iteration   int
	Query       string
	ArtifactRef string
	Suggestion  string
	Results     *exec.SearchResults
}

// Process runs one full iteration of the alchemy pipeline against a
// fresh iteration directory: prepare source data, process it into the
// unified store, initialize components, then parse intent, build a
// plan, execute the search, and generate an artifact. A non-empty
// optimization suggestion from the artifact generator recurses into a
// new iteration, up to maxOptimizationDepth.
func (o *Orchestrator) Process(ctx context.Context, query string, inputDirs []string) ProcessResult {
	o.cancelRequested.Store(false)
	return o.process(ctx, query, inputDirs, 0)
}

func (o *Orchestrator) process(ctx context.Context, query string, inputDirs []string, depth int) ProcessResult {
	iteration, err := o.layout.NextIteration()
	if err != nil {
		return o.errorResult(query, 0, err)
	}
	iterDir := o.layout.IterDir(iteration)
	if err := os.MkdirAll(iterDir, 0o755); err != nil {
		return o.errorResult(query, iteration, err)
	}

	o.currentStep = StepInitialization
	o.events.Publish(ProcessStarted, map[string]any{"alchemy_id": o.layout.AlchemyID, "query": query, "iteration": iteration})
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}

	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}

	sourceDataDir := filepath.Join(iterDir, "source_data")
	o.currentStep = StepPrepareSourceData
	if err := o.prepareSourceData(sourceDataDir, inputDirs, iteration); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}

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
	facade := ingest.NewFacade(embedder, o.logger)

	o.currentStep = StepProcessData
	if dirHasEntries(sourceDataDir) {
		if _, err := processSourceData(ctx, sourceDataDir, st, cache, facade, o.logger); err != nil {
			return o.errorResult(query, iteration, err)
		}
	}
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}

	o.currentStep = StepInitializeComponents
	if err := o.writeComponentsConfig(iterDir, iteration, dbPath, cachePath); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}

	o.currentStep = StepExecuteWorkflow
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}

	result := o.runWorkflow(ctx, iterDir, iteration, query, st, embedder, depth)
	return o.finalizeIteration(ctx, iterDir, iteration, query, result, depth)
}

// finalizeIteration runs the finalize step: checkpoint, append the
// iteration summary, update the task registry, publish completion, and
// recurse into a new iteration if the artifact generator suggested an
// optimized follow-up query.
func (o *Orchestrator) finalizeIteration(ctx context.Context, iterDir string, iteration int, query string, result ProcessResult, depth int) ProcessResult {
	if result.Status == "cancelled" {
		// The checkpoint must keep recording the step that was
		// interrupted, not finalize.
		return result
	}
	o.currentStep = StepFinalize
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}

	summary := IterationSummary{Iteration: iteration, Timestamp: time.Now().UTC(), Query: query, Path: relPath(o.layout.TaskDir, iterDir)}
	if result.ArtifactRef != "" {
		summary.Artifacts = append(summary.Artifacts, result.ArtifactRef)
	}
	if result.Suggestion != "" {
		summary.OptimizationSuggestions = append(summary.OptimizationSuggestions, result.Suggestion)
	}
	if err := o.appendIterationSummary(summary); err != nil {
		return o.errorResult(query, iteration, err)
	}

	if o.registry != nil {
		if _, err := o.registry.UpdateTask(o.layout.AlchemyID, func(t *registry.TaskSummary) {
			t.Status = result.Status
			t.Iterations = iteration
			t.LatestQuery = query
			if result.ArtifactRef != "" {
				t.ArtifactsCount++
				t.Artifacts = append(t.Artifacts, result.ArtifactRef)
			}
		}); err != nil {
			o.logger.Warn("updating task registry failed", "error", err)
		}
	}

	o.events.Publish(ProcessCompleted, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "status": result.Status})

	if result.Suggestion != "" && depth+1 < maxOptimizationDepth {
		o.events.Publish(OptimizationSuggested, map[string]any{"alchemy_id": o.layout.AlchemyID, "query": result.Suggestion})
		return o.process(ctx, result.Suggestion, nil, depth+1)
	}
	return result
}

// runWorkflow executes parse_intent -> build_plan -> execute_search ->
// generate_artifact for one iteration, checkpointing and checking for
// cancellation at each sub-step.
func (o *Orchestrator) runWorkflow(ctx context.Context, iterDir string, iteration int, query string, st *store.Store, embedder ingest.Embedder, depth int) ProcessResult {
	reasoningHistory := llmdispatch.NewHistory(filepath.Join(iterDir, "reasoning_history.json"))
	cache := intent.NewCache(0, 0)
	parser := intent.NewParser(o.dispatcher, o.generatorModel, cache, o.logger)
	engine := search.New(st, embedder)
	executor := exec.New(engine, o.logger)
	generator := artifact.NewGenerator(o.dispatcher, reasoningHistory, o.reasoningModel, o.layout.AlchemyID)

	o.currentStep = StepParseIntent
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}
	parsedIntent := parser.Parse(ctx, query)
	o.events.Publish(IntentParsed, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "intent": parsedIntent})

	o.currentStep = StepBuildPlan
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}
	searchPlan, err := plan.Build(parsedIntent)
	if err != nil {
		if errors.Is(err, plan.ErrNoValidPlan) {
			o.logger.Warn("no valid search plan for query, skipping search and artifact generation", "query", query)
			return ProcessResult{Status: "success", AlchemyID: o.layout.AlchemyID, Iteration: iteration, Query: query}
		}
		return o.errorResult(query, iteration, err)
	}
	o.events.Publish(PlanBuilt, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "plan": searchPlan})

	o.currentStep = StepExecuteSearch
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}
	searchResults := executor.Execute(ctx, searchPlan)
	resultsPath := filepath.Join(iterDir, "search_results.json")
	if err := saveJSON(resultsPath, searchResults); err != nil {
		return o.errorResult(query, iteration, err)
	}
	o.events.Publish(SearchExecuted, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "stats": searchResults.Stats})

	out := ProcessResult{Status: "success", AlchemyID: o.layout.AlchemyID, Iteration: iteration, Query: query, Results: &searchResults}

	if searchResults.Stats.Total == 0 {
		o.logger.Info("search returned no results, skipping artifact generation", "query", query)
		return out
	}

	o.currentStep = StepGenerateArtifact
	if err := o.saveCheckpoint(iterDir, o.checkpoint(iteration)); err != nil {
		return o.errorResult(query, iteration, err)
	}
	if result, done := o.guardCancellation(query, iteration); done {
		return result
	}
	genResult, err := generator.Generate(ctx, iterDir, o.layout.ArtifactsDir, iteration, query, []string{resultsPath})
	if err != nil {
		return o.errorResult(query, iteration, err)
	}
	o.events.Publish(ArtifactGenerated, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "path": genResult.ArtifactPath})

	out.ArtifactRef = relPath(o.layout.TaskDir, genResult.ArtifactPath)
	out.Suggestion = genResult.OptimizationSuggestion
	return out
}

func (o *Orchestrator) guardCancellation(query string, iteration int) (ProcessResult, bool) {
	if err := o.checkCancellation(); err != nil {
		if saveErr := o.saveResumeInfo(query); saveErr != nil {
			o.logger.Warn("saving resume info on cancellation failed", "error", saveErr)
		}
		o.events.Publish(ProcessCancelled, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "step": o.currentStep})
		return ProcessResult{Status: "cancelled", Message: err.Error(), AlchemyID: o.layout.AlchemyID, Iteration: iteration, Query: query}, true
	}
	return ProcessResult{}, false
}

func (o *Orchestrator) errorResult(query string, iteration int, err error) ProcessResult {
	o.logger.Error("alchemy process failed", "alchemy_id", o.layout.AlchemyID, "iteration", iteration, "step", o.currentStep, "error", err)
	o.events.Publish(ErrorOccurred, map[string]any{"alchemy_id": o.layout.AlchemyID, "iteration": iteration, "step": o.currentStep, "error": err.Error()})
	return ProcessResult{Status: "error", Message: err.Error(), AlchemyID: o.layout.AlchemyID, Iteration: iteration, Query: query}
}

func (o *Orchestrator) checkpoint(iteration int) Checkpoint {
	return Checkpoint{AlchemyID: o.layout.AlchemyID, Timestamp: time.Now().UTC(), Step: o.currentStep, Iteration: iteration}
}

// prepareSourceData populates iterDir/source_data by copying the
// previous iteration's source_data (when one exists, so a recursive
// self-optimization reuses what was already ingested) and every
// supplied input directory.
func (o *Orchestrator) prepareSourceData(dest string, inputDirs []string, iteration int) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if iteration > 1 {
		parent := filepath.Join(o.layout.IterDir(iteration-1), "source_data")
		if dirHasEntries(parent) {
			if err := copyDir(parent, dest); err != nil {
				return fmt.Errorf("orchestrator: copying parent source data: %w", err)
			}
		}
	}
	for _, dir := range inputDirs {
		if err := copyDir(dir, dest); err != nil {
			return fmt.Errorf("orchestrator: copying input dir %s: %w", dir, err)
		}
	}
	return nil
}

type componentsConfig struct {
	Iteration      int    `json:"iteration"`
	WorkDir        string `json:"work_dir"`
	DBPath         string `json:"db_path"`
	CachePath      string `json:"cache_path"`
	ReasoningModel string `json:"reasoning_model"`
	GeneratorModel string `json:"generator_model"`
	EmbeddingModel string `json:"embedding_model"`
}

func (o *Orchestrator) writeComponentsConfig(iterDir string, iteration int, dbPath, cachePath string) error {
	cfg := componentsConfig{
		Iteration:      iteration,
		WorkDir:        o.layout.WorkDir,
		DBPath:         relPath(iterDir, dbPath),
		CachePath:      relPath(iterDir, cachePath),
		ReasoningModel: o.reasoningModel,
		GeneratorModel: o.generatorModel,
		EmbeddingModel: o.embeddingModel,
	}
	return saveJSON(filepath.Join(iterDir, "components_config.json"), cfg)
}
