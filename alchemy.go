// Package alchemy is the facade over the alchemy orchestrator: it wires
// a model registry, dispatcher, and task registry from a Config, and
// hands out per-task Orchestrators.
package alchemy

import (
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/alchemy/internal/llmdispatch"
	"github.com/brunobiangulo/alchemy/internal/orchestrator"
	"github.com/brunobiangulo/alchemy/internal/registry"
)

// Engine owns the long-lived pieces of a workspace: the LLM model
// registry/dispatcher and the cross-task registry. Orchestrators for
// individual alchemy tasks are created on demand from it.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	dispatcher *llmdispatch.Dispatcher
	registry   *registry.Registry
}

// New builds an Engine: a model registry populated with the generator,
// reasoning, and embedding models (all sharing LLMAPIBase/LLMAPIKeys),
// and the cross-task registry rooted at cfg.WorkDir.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("alchemy: %w: work dir required", ErrInvalidConfig)
	}
	if len(cfg.LLMAPIKeys) == 0 {
		return nil, fmt.Errorf("alchemy: %w: no LLM API keys configured", ErrInvalidConfig)
	}

	modelRegistry := llmdispatch.NewRegistry()
	for _, model := range uniqueModels(cfg.GeneratorModel, cfg.ReasoningModel, cfg.EmbeddingModel) {
		modelRegistry.Register(llmdispatch.ModelSpec{
			Name:    model,
			Type:    llmdispatch.ModelTypeAPI,
			APIBase: cfg.LLMAPIBase,
			APIKeys: cfg.LLMAPIKeys,
		})
	}

	taskRegistry, err := registry.Open(cfg.WorkDir, logger)
	if err != nil {
		return nil, fmt.Errorf("alchemy: opening task registry: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		dispatcher: llmdispatch.NewDispatcher(modelRegistry),
		registry:   taskRegistry,
	}, nil
}

func uniqueModels(models ...string) []string {
	seen := make(map[string]bool, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Registry returns the cross-task registry for CLI-level listing,
// tagging, archival, and export operations.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// NewTask creates a fresh alchemy task. An empty alchemyID lets the
// orchestrator generate a time-based one.
func (e *Engine) NewTask(alchemyID string) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(orchestrator.Config{
		WorkDir:        e.cfg.WorkDir,
		AlchemyID:      alchemyID,
		Dispatcher:     e.dispatcher,
		ReasoningModel: e.cfg.ReasoningModel,
		GeneratorModel: e.cfg.GeneratorModel,
		EmbeddingModel: e.cfg.EmbeddingModel,
		EmbeddingDim:   e.cfg.EmbeddingDim,
		Registry:       e.registry,
		Logger:         e.logger,
	})
}

// OpenTask re-attaches an Orchestrator to an existing task directory
// so a prior run can be resumed by id.
func (e *Engine) OpenTask(alchemyID string) (*orchestrator.Orchestrator, error) {
	if alchemyID == "" {
		return nil, fmt.Errorf("alchemy: %w: alchemy id required", ErrTaskNotFound)
	}
	return e.NewTask(alchemyID)
}
