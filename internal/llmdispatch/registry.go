// Package llmdispatch implements the LLM dispatcher: a model
// registry with round-robin API key rotation, non-streaming retry,
// the streaming <think>/<answer> reasoning wrapper, and message
// history persistence. It routes every request through one llm.Client
// per (model, key) pair, picking the key per request round-robin.
package llmdispatch

import (
	"fmt"
	"sync"
)

// ModelType distinguishes a locally-hosted model from an API-backed one.
type ModelType string

const (
	ModelTypeLocal ModelType = "local"
	ModelTypeAPI   ModelType = "api"
)

// ModelSpec describes one entry in the model registry.
type ModelSpec struct {
	Name    string
	Type    ModelType
	APIBase string
	APIKeys []string
}

// Registry maps model_name -> spec and tracks a round-robin index over
// each API model's key list.
type Registry struct {
	mu      sync.Mutex
	models  map[string]ModelSpec
	keyIdxs map[string]int
}

// NewRegistry returns an empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		models:  make(map[string]ModelSpec),
		keyIdxs: make(map[string]int),
	}
}

// Register adds or replaces a model spec.
func (r *Registry) Register(spec ModelSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[spec.Name] = spec
}

// Spec returns the registered spec for a model name.
func (r *Registry) Spec(model string) (ModelSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.models[model]
	if !ok {
		return ModelSpec{}, fmt.Errorf("llmdispatch: unknown model %q", model)
	}
	return spec, nil
}

// NextKey returns the next API key for model in round-robin order.
// Local models carry no keys and are reported as unsupported.
func (r *Registry) NextKey(model string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec, ok := r.models[model]
	if !ok {
		return "", fmt.Errorf("llmdispatch: unknown model %q", model)
	}
	if spec.Type == ModelTypeLocal {
		return "", fmt.Errorf("llmdispatch: local model %q not supported", model)
	}
	if len(spec.APIKeys) == 0 {
		return "", fmt.Errorf("llmdispatch: model %q has no configured API keys", model)
	}

	idx := r.keyIdxs[model] % len(spec.APIKeys)
	r.keyIdxs[model] = idx + 1
	return spec.APIKeys[idx], nil
}
