package llmdispatch

import (
	"context"

	"github.com/brunobiangulo/alchemy/llm"
)

// StreamEvent is one piece of a streamed response. Wrapped carries the
// <think>/<answer>-tagged text meant for chat history display; Content
// carries the raw answer-only delta (empty for reasoning chunks), which
// the artifact generator extracts HTML from.
type StreamEvent struct {
	Wrapped string
	Content string
}

// Stream issues a streaming chat completion and wraps the interleaved
// reasoning/content deltas into a single segment stream: open <think>
// at the first reasoning chunk, emit raw chunks thereafter, close
// </think> and open <answer> at the first content chunk, close
// </answer> at stream end. If reasoning is empty, only the <answer>
// wrapper is emitted. Streaming requests are never retried (resuming a
// stream is undefined).
//
// The returned channel is closed when the stream ends; a non-nil error
// is sent to errCh at most once.
func (d *Dispatcher) Stream(ctx context.Context, model string, messages []llm.Message) (<-chan StreamEvent, <-chan error) {
	out := make(chan StreamEvent)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		apiKey, err := d.registry.NextKey(model)
		if err != nil {
			errCh <- err
			return
		}
		c, err := d.clientFor(model, apiKey)
		if err != nil {
			errCh <- err
			return
		}

		deltas, streamErr := c.StreamChat(ctx, llm.ChatRequest{Model: model, Messages: messages})

		sw := &streamWrapper{}
		for delta := range deltas {
			if delta.Reasoning != "" {
				if seg := sw.reasoning(delta.Reasoning); seg != "" {
					out <- StreamEvent{Wrapped: seg}
				}
			}
			if delta.Content != "" {
				if seg := sw.content(delta.Content); seg != "" {
					out <- StreamEvent{Wrapped: seg, Content: delta.Content}
				}
			}
		}

		if err := <-streamErr; err != nil {
			errCh <- err
			return
		}

		if seg := sw.end(); seg != "" {
			out <- StreamEvent{Wrapped: seg}
		}
	}()

	return out, errCh
}

// streamWrapper implements the three-transition state machine: first
// reasoning chunk, first content chunk, end of stream.
type streamWrapper struct {
	sawReasoning bool
	sawContent   bool
}

func (sw *streamWrapper) reasoning(delta string) string {
	if !sw.sawReasoning {
		sw.sawReasoning = true
		return "<think>\n" + delta
	}
	return delta
}

func (sw *streamWrapper) content(delta string) string {
	if !sw.sawContent {
		sw.sawContent = true
		if sw.sawReasoning {
			return "\n</think>\n\n<answer>\n" + delta
		}
		return "<answer>\n" + delta
	}
	return delta
}

func (sw *streamWrapper) end() string {
	if sw.sawContent {
		return "\n</answer>"
	}
	if sw.sawReasoning {
		return "\n</think>"
	}
	return ""
}
