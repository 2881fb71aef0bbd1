package llmdispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brunobiangulo/alchemy/llm"
)

const (
	nonStreamRetries = 3
	retryBackoff     = time.Second
)

// client is the subset of llm.Client the dispatcher drives, split out
// so tests can substitute a fake.
type client interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.Delta, <-chan error)
}

// Dispatcher routes chat/embedding calls to the shared endpoint,
// rotating API keys per request and caching one client per
// (model, key) pair.
type Dispatcher struct {
	registry *Registry

	mu      sync.Mutex
	clients map[string]client // keyed by "model|key"
}

// NewDispatcher builds a Dispatcher over a populated model registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, clients: make(map[string]client)}
}

func (d *Dispatcher) clientFor(model, apiKey string) (client, error) {
	cacheKey := model + "|" + apiKey

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[cacheKey]; ok {
		return c, nil
	}

	spec, err := d.registry.Spec(model)
	if err != nil {
		return nil, err
	}

	c := llm.NewClient(spec.APIBase, apiKey)
	d.clients[cacheKey] = c
	return c, nil
}

// Chat issues a non-streaming chat completion, making up to 3 attempts
// with a fixed ~1s backoff on any transport or protocol error.
func (d *Dispatcher) Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error) {
	apiKey, err := d.registry.NextKey(model)
	if err != nil {
		return nil, err
	}

	c, err := d.clientFor(model, apiKey)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < nonStreamRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.Chat(ctx, llm.ChatRequest{Model: model, Messages: messages})
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("llmdispatch: chat failed after %d attempts: %w", nonStreamRetries, lastErr)
}

// Embed generates an embedding for a single text using the configured
// embedding model.
func (d *Dispatcher) Embed(ctx context.Context, model, text string) ([]float32, error) {
	apiKey, err := d.registry.NextKey(model)
	if err != nil {
		return nil, err
	}

	c, err := d.clientFor(model, apiKey)
	if err != nil {
		return nil, err
	}

	vecs, err := c.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("llmdispatch: embedding response empty for model %q", model)
	}
	return vecs[0], nil
}
