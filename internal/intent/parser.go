package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/alchemy/llm"
)

const (
	extractRetries  = 3
	extractBackoff  = 300 * time.Millisecond
	keywordSystem   = "Extract up to three short search keywords from the user's query. Respond with a JSON object of the exact shape {\"keywords\": [\"...\"]} and nothing else."
	referenceSystem = "Extract up to three short reference passages that capture what the user's query is about, suitable for semantic similarity search. Respond with a JSON object of the exact shape {\"reference_texts\": [\"...\"]} and nothing else."
)

// ChatClient is the subset of the LLM dispatcher the intent parser needs.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error)
}

// Parser turns a natural language query into an Intent.
type Parser struct {
	chat   ChatClient
	model  string
	cache  *Cache
	logger *slog.Logger
}

// NewParser builds an intent Parser. cache may be nil to disable caching.
func NewParser(chat ChatClient, model string, cache *Cache, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{chat: chat, model: model, cache: cache, logger: logger}
}

// Parse produces an Intent for a raw query string. It never returns an
// error: a transient upstream failure on either extraction call falls
// back to an empty result for that half.
func (p *Parser) Parse(ctx context.Context, query string) Intent {
	if p.cache != nil {
		if cached, ok := p.cache.Get(query); ok {
			return cached
		}
	}

	var keywords []string
	var referenceTexts []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kws, err := p.extractJSONList(gctx, keywordSystem, query, "keywords", maxKeywords)
		if err != nil {
			p.logger.Warn("keyword extraction failed, falling back to empty", "error", err)
			return nil
		}
		keywords = kws
		return nil
	})
	g.Go(func() error {
		refs, err := p.extractJSONList(gctx, referenceSystem, query, "reference_texts", maxReferenceTexts)
		if err != nil {
			p.logger.Warn("reference text extraction failed, falling back to empty", "error", err)
			return nil
		}
		referenceTexts = refs
		return nil
	})
	_ = g.Wait() // sub-goroutines never return a non-nil error; see above

	in := Intent{OriginalQuery: query}
	for _, kw := range keywords {
		in.StructuredConditions = append(in.StructuredConditions, StructuredCondition{Keyword: kw})
	}
	for _, ref := range referenceTexts {
		in.VectorConditions = append(in.VectorConditions, VectorCondition{
			ReferenceText:       ref,
			SimilarityThreshold: defaultSimilarityThreshold,
			TopK:                defaultTopK,
		})
	}

	if p.cache != nil {
		p.cache.Store(query, in)
	}
	return in
}

// extractJSONList calls the model with a fixed extraction prompt and
// decodes a single-key JSON object holding a list of strings, making up
// to extractRetries attempts in total on malformed JSON.
func (p *Parser) extractJSONList(ctx context.Context, systemPrompt, query, key string, cap int) ([]string, error) {
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: query},
	}

	var lastErr error
	for attempt := 0; attempt < extractRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(extractBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := p.chat.Chat(ctx, p.model, messages)
		if err != nil {
			lastErr = err
			continue
		}

		var parsed map[string][]string
		if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
			lastErr = fmt.Errorf("malformed JSON from model: %w", err)
			continue
		}

		values := parsed[key]
		if len(values) > cap {
			values = values[:cap]
		}
		return values, nil
	}
	return nil, fmt.Errorf("extraction failed after %d attempts: %w", extractRetries, lastErr)
}
