package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/internal/llmdispatch"
	"github.com/brunobiangulo/alchemy/llm"
)

// fakeDispatcher answers intent extraction, artifact streaming, follow-up
// derivation, and embedding with canned responses so a full Process run
// needs no network.
type fakeDispatcher struct {
	suggestion string
	suggested  bool
}

const fakeHTML = "<html><body><h1>report</h1></body></html>"

func (f *fakeDispatcher) Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResponse, error) {
	system := ""
	if len(messages) > 0 && messages[0].Role == "system" {
		system = messages[0].Content
	}
	switch {
	case strings.Contains(system, `{"keywords"`):
		return &llm.ChatResponse{Content: `{"keywords": ["alpha"]}`}, nil
	case strings.Contains(system, `{"reference_texts"`):
		return &llm.ChatResponse{Content: `{"reference_texts": ["alpha beta"]}`}, nil
	case strings.Contains(system, "follow-up"):
		if f.suggestion != "" && !f.suggested {
			f.suggested = true
			return &llm.ChatResponse{Content: "<answer>" + f.suggestion + "</answer>"}, nil
		}
		return &llm.ChatResponse{Content: ""}, nil
	default:
		return nil, fmt.Errorf("unexpected chat prompt: %q", system)
	}
}

func (f *fakeDispatcher) Stream(ctx context.Context, model string, messages []llm.Message) (<-chan llmdispatch.StreamEvent, <-chan error) {
	out := make(chan llmdispatch.StreamEvent, 4)
	errCh := make(chan error, 1)
	out <- llmdispatch.StreamEvent{Wrapped: "<think>\nassembling\n</think>\n\n<answer>\n" + fakeHTML}
	out <- llmdispatch.StreamEvent{Wrapped: "", Content: fakeHTML}
	out <- llmdispatch.StreamEvent{Wrapped: "\n</answer>"}
	close(out)
	close(errCh)
	return out, errCh
}

func (f *fakeDispatcher) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func newTestOrchestrator(t *testing.T, dispatcher Dispatcher) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		WorkDir:        t.TempDir(),
		AlchemyID:      "alchemy_test",
		Dispatcher:     dispatcher,
		ReasoningModel: "reasoner",
		GeneratorModel: "generator",
		EmbeddingModel: "embedder",
		EmbeddingDim:   4,
		Logger:         slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	require.NoError(t, err)
	return o
}

func writeInputDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha beta gamma delta"), 0o644))
	return dir
}

func TestProcessFullIterationWithFollowUp(t *testing.T) {
	fake := &fakeDispatcher{suggestion: "refined alpha query"}
	o := newTestOrchestrator(t, fake)

	result := o.Process(context.Background(), "find alpha", []string{writeInputDir(t)})
	require.Equal(t, "success", result.Status)
	require.Equal(t, "refined alpha query", result.Query)
	require.Equal(t, 2, result.Iteration)

	// Both iterations wrote their own artifact copy.
	for _, n := range []int{1, 2} {
		_, err := os.Stat(filepath.Join(o.layout.IterDir(n), "output", fmt.Sprintf("artifact_iter%d.html", n)))
		require.NoError(t, err, "iteration %d artifact", n)
	}

	// The latest artifact is the second one; the first was snapshotted.
	latest, err := os.ReadFile(filepath.Join(o.layout.ArtifactsDir, "artifact.html"))
	require.NoError(t, err)
	require.Equal(t, fakeHTML, string(latest))
	_, err = os.Stat(filepath.Join(o.layout.ArtifactsDir, "artifact_versions", "artifact_v1.html"))
	require.NoError(t, err)

	var status TaskStatus
	ok, err := loadJSON(filepath.Join(o.layout.TaskDir, "status.json"), &status)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, status.Iterations, 2)
	require.Equal(t, 2, status.LatestIteration)
	require.Equal(t, "refined alpha query", status.Iterations[1].Query)
}

func TestProcessCancelAndResume(t *testing.T) {
	fake := &fakeDispatcher{}
	o := newTestOrchestrator(t, fake)

	armed := true
	o.Subscribe(ProcessCheckpoint, func(ev Event) {
		cp, ok := ev.Data.(Checkpoint)
		if ok && armed && cp.Step == StepParseIntent {
			armed = false
			o.Cancel()
		}
	}, false)

	result := o.Process(context.Background(), "find alpha", []string{writeInputDir(t)})
	require.Equal(t, "cancelled", result.Status)

	var info ResumeInfo
	ok, err := loadJSON(filepath.Join(o.layout.TaskDir, "resume_info.json"), &info)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alchemy_test", info.AlchemyID)
	require.Equal(t, "find alpha", info.Query)

	// Resuming with no query override picks up the checkpointed one.
	resumed := o.Resume(context.Background(), "")
	require.Equal(t, "success", resumed.Status)
	require.Equal(t, 1, resumed.Iteration)
	require.Equal(t, "find alpha", resumed.Query)
	_, err = os.Stat(filepath.Join(o.layout.ArtifactsDir, "artifact.html"))
	require.NoError(t, err)
}

func TestProcessMissingInputDirIsAnError(t *testing.T) {
	o := newTestOrchestrator(t, &fakeDispatcher{})
	result := o.Process(context.Background(), "q", []string{"/does/not/exist"})
	require.Equal(t, "error", result.Status)
	require.NotEmpty(t, result.Message)
}

func TestResumeWithoutCheckpoint(t *testing.T) {
	o := newTestOrchestrator(t, &fakeDispatcher{})
	result := o.Resume(context.Background(), "q")
	require.Equal(t, "error", result.Status)
}

func TestEventBusSyncOrder(t *testing.T) {
	bus := NewEventBus()
	var got []int
	bus.Subscribe(ProcessStarted, func(ev Event) { got = append(got, ev.Data.(int)) }, false)
	for i := 0; i < 5; i++ {
		bus.Publish(ProcessStarted, i)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestEventBusAsyncPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan int, 10)
	bus.Subscribe(SearchExecuted, func(ev Event) { ch <- ev.Data.(int) }, true)
	for i := 0; i < 5; i++ {
		bus.Publish(SearchExecuted, i)
	}
	bus.StopWait()
	close(ch)

	var got []int
	for v := range ch {
		got = append(got, v)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLayoutIterationNumbering(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "alchemy_x")
	require.NoError(t, err)

	n, err := l.NextIteration()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	for _, iter := range []int{1, 2, 5} {
		require.NoError(t, os.MkdirAll(l.IterDir(iter), 0o755))
	}
	n, err = l.NextIteration()
	require.NoError(t, err)
	require.Equal(t, 6, n)

	existing, err := l.ExistingIterations()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 5}, existing)
}

func TestTaskServiceBoundedQueue(t *testing.T) {
	svc := NewTaskService(1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, svc.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// The single slot is held by the running item.
	err := svc.Submit(func() {})
	require.ErrorIs(t, err, ErrQueueFull)

	close(release)
	svc.StopWait()

	// After draining, submissions are accepted again on a fresh service.
	svc2 := NewTaskService(1)
	done := make(chan struct{})
	require.NoError(t, svc2.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queued item never ran")
	}
	svc2.StopWait()
}

func TestCopyDirRecursive(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "deep.txt"), []byte("deep"), 0o644))

	dst := t.TempDir()
	require.NoError(t, copyDir(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "nested", "deep.txt"))
	require.NoError(t, err)
	require.Equal(t, "deep", string(data))
}
