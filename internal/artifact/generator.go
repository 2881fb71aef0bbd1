package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/alchemy/internal/llmdispatch"
	"github.com/brunobiangulo/alchemy/llm"
)

const followUpSystemPrompt = "Given the original search query and the HTML artifact produced from it, suggest one optimized follow-up search query that would surface better source material. Respond with only the query, wrapped in <answer></answer> tags."

// Dispatcher is the subset of llmdispatch.Dispatcher the generator needs.
type Dispatcher interface {
	Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error)
	Stream(ctx context.Context, model string, messages []llm.Message) (<-chan llmdispatch.StreamEvent, <-chan error)
}

// Generator turns retrieval context into an HTML artifact: context
// assembly, streamed HTML generation,
// versioning, and follow-up query suggestion.
type Generator struct {
	dispatcher Dispatcher
	history    *llmdispatch.History
	model      string
	artifactID string
}

// NewGenerator builds a Generator. history is cleared and reused across
// iterations so each artifact generation starts from a clean prompt.
func NewGenerator(dispatcher Dispatcher, history *llmdispatch.History, model, artifactID string) *Generator {
	return &Generator{dispatcher: dispatcher, history: history, model: model, artifactID: artifactID}
}

// Result is what one Generate call produces.
type Result struct {
	HTML                   string
	ArtifactPath           string
	OptimizationSuggestion string
	Manifest               Manifest
}

// Generate assembles context from contextPaths, prompts the model
// through the streaming reasoning protocol, extracts HTML from the
// response, versions it under artifactsDir, updates status.json, and
// produces a follow-up query suggestion.
func (g *Generator) Generate(ctx context.Context, iterDir, artifactsDir string, iteration int, query string, contextPaths []string) (Result, error) {
	assembled, err := Assemble(contextPaths)
	if err != nil {
		return Result{}, fmt.Errorf("artifact: assembling context: %w", err)
	}
	if err := saveJSON(filepath.Join(iterDir, "context_manifest.json"), assembled.Manifest); err != nil {
		return Result{}, fmt.Errorf("artifact: persisting context manifest: %w", err)
	}

	prompt := buildPrompt(query, assembled)

	g.history.ClearHistory()
	if err := g.history.AddMessage("user", prompt, nil); err != nil {
		return Result{}, fmt.Errorf("artifact: recording prompt: %w", err)
	}

	events, errCh := g.dispatcher.Stream(ctx, g.model, messagesFromHistory(g.history))

	var wrapped, content strings.Builder
	for ev := range events {
		wrapped.WriteString(ev.Wrapped)
		content.WriteString(ev.Content)
	}
	if err := <-errCh; err != nil {
		return Result{}, fmt.Errorf("artifact: streaming response: %w", err)
	}

	if err := g.history.AddMessage("assistant", wrapped.String(), map[string]any{
		"reasoning": strings.Contains(wrapped.String(), "<think>"),
	}); err != nil {
		return Result{}, fmt.Errorf("artifact: recording response: %w", err)
	}

	html, ok := ExtractHTML(content.String())
	if !ok {
		html = ErrorPage(query, "no HTML document found in model response")
	}

	outputPath := filepath.Join(iterDir, "output", fmt.Sprintf("artifact_iter%d.html", iteration))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("artifact: creating output dir: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(html), 0o644); err != nil {
		return Result{}, fmt.Errorf("artifact: writing iteration output: %w", err)
	}

	if err := PromoteVersion(artifactsDir, html, query); err != nil {
		return Result{}, fmt.Errorf("artifact: promoting version: %w", err)
	}

	artifactPath := filepath.Join(artifactsDir, "artifact.html")
	statusPath := filepath.Join(artifactsDir, "status.json")
	status, err := LoadStatus(statusPath)
	if err != nil {
		return Result{}, fmt.Errorf("artifact: loading status: %w", err)
	}
	if status.ArtifactID == "" {
		status.ArtifactID = g.artifactID
	}
	now := time.Now().UTC()
	status.AppendIteration(IterationRecord{
		Iteration:    iteration,
		Timestamp:    now,
		Query:        query,
		ArtifactPath: outputPath,
	}, artifactPath)
	if err := SaveStatus(statusPath, status); err != nil {
		return Result{}, fmt.Errorf("artifact: saving status: %w", err)
	}

	suggestion := g.suggestFollowUp(ctx, query, html)

	return Result{
		HTML:                   html,
		ArtifactPath:           artifactPath,
		OptimizationSuggestion: suggestion,
		Manifest:               assembled.Manifest,
	}, nil
}

// suggestFollowUp makes a second, non-streaming call asking the model
// to optimize the original query. A failure here is non-fatal: an
// empty suggestion is returned and the artifact itself is unaffected.
func (g *Generator) suggestFollowUp(ctx context.Context, query, html string) string {
	messages := []llm.Message{
		{Role: "system", Content: followUpSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Original query: %s\n\nArtifact (truncated):\n%s", query, truncate(html, 4000))},
	}
	resp, err := g.dispatcher.Chat(ctx, g.model, messages)
	if err != nil {
		return ""
	}
	return ExtractFollowUpQuery(resp.Content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func buildPrompt(query string, ctxData Context) string {
	paths := make([]string, 0, len(ctxData.Contents))
	for p := range ctxData.Contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\n")
	for _, p := range paths {
		name := p
		if info, ok := ctxData.Infos[p]; ok {
			name = info.FileName
		}
		fmt.Fprintf(&b, "[%s]\n[file content begin]\n%s\n[file content end]\n\n", name, ctxData.Contents[p])
	}
	return b.String()
}

func messagesFromHistory(h *llmdispatch.History) []llm.Message {
	var out []llm.Message
	if sp := h.SystemPrompt(); sp != "" {
		out = append(out, llm.Message{Role: "system", Content: sp})
	}
	for _, m := range h.Messages() {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
