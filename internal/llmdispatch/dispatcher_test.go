package llmdispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/alchemy/llm"
)

type fakeClient struct {
	failures int
	calls    int
	content  string
	vector   []float32
	deltas   []llm.Delta
}

func (f *fakeClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient upstream failure")
	}
	return &llm.ChatResponse{Content: f.content}, nil
}

func (f *fakeClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if f.vector == nil {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeClient) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.Delta, <-chan error) {
	out := make(chan llm.Delta, len(f.deltas))
	errCh := make(chan error, 1)
	for _, d := range f.deltas {
		out <- d
	}
	close(out)
	close(errCh)
	return out, errCh
}

func newTestDispatcher(t *testing.T, spec ModelSpec, c client) *Dispatcher {
	t.Helper()
	r := NewRegistry()
	r.Register(spec)
	d := NewDispatcher(r)
	for _, key := range spec.APIKeys {
		d.clients[spec.Name+"|"+key] = c
	}
	return d
}

func TestChatRetriesThenSucceeds(t *testing.T) {
	fake := &fakeClient{failures: 2, content: "hello"}
	d := newTestDispatcher(t, ModelSpec{Name: "m1", Type: ModelTypeAPI, APIKeys: []string{"k"}}, fake)

	resp, err := d.Chat(context.Background(), "m1", []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, 3, fake.calls)
}

func TestChatExhaustsRetries(t *testing.T) {
	fake := &fakeClient{failures: 10}
	d := newTestDispatcher(t, ModelSpec{Name: "m1", Type: ModelTypeAPI, APIKeys: []string{"k"}}, fake)

	_, err := d.Chat(context.Background(), "m1", nil)
	require.Error(t, err)
	require.Equal(t, nonStreamRetries, fake.calls)
}

func TestChatRotatesKeysAcrossRequests(t *testing.T) {
	fake := &fakeClient{content: "ok"}
	d := newTestDispatcher(t, ModelSpec{Name: "m1", Type: ModelTypeAPI, APIKeys: []string{"a", "b"}}, fake)

	for i := 0; i < 4; i++ {
		_, err := d.Chat(context.Background(), "m1", nil)
		require.NoError(t, err)
	}
	// Two keys, four requests: the round-robin index wrapped twice.
	next, err := d.registry.NextKey("m1")
	require.NoError(t, err)
	require.Equal(t, "a", next)
}

func TestEmbedEmptyResponseIsAnError(t *testing.T) {
	fake := &fakeClient{}
	d := newTestDispatcher(t, ModelSpec{Name: "emb", Type: ModelTypeAPI, APIKeys: []string{"k"}}, fake)

	_, err := d.Embed(context.Background(), "emb", "text")
	require.Error(t, err)
}

func TestStreamWrapsDeltasIntoReasoningProtocol(t *testing.T) {
	fake := &fakeClient{deltas: []llm.Delta{
		{Reasoning: "pondering"},
		{Reasoning: " deeply"},
		{Content: "<html>"},
		{Content: "</html>"},
	}}
	d := newTestDispatcher(t, ModelSpec{Name: "m1", Type: ModelTypeAPI, APIKeys: []string{"k"}}, fake)

	events, errCh := d.Stream(context.Background(), "m1", []llm.Message{{Role: "user", Content: "go"}})

	var wrapped, content strings.Builder
	for ev := range events {
		wrapped.WriteString(ev.Wrapped)
		content.WriteString(ev.Content)
	}
	require.NoError(t, <-errCh)
	require.Equal(t,
		"<think>\npondering deeply\n</think>\n\n<answer>\n<html></html>\n</answer>",
		wrapped.String(),
	)
	require.Equal(t, "<html></html>", content.String())
}

func TestStreamUnknownModel(t *testing.T) {
	d := NewDispatcher(NewRegistry())
	events, errCh := d.Stream(context.Background(), "missing", nil)
	for range events {
	}
	require.Error(t, <-errCh)
}
