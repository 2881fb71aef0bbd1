package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Delta is one streamed chunk of a reasoning model's reply: Reasoning
// carries the model's internal rationale, Content the final answer.
// Either may be empty on any given chunk; reasoning models interleave
// the two on one stream.
type Delta struct {
	Reasoning string
	Content   string
}

type streamChatRequest struct {
	ChatRequest
	Stream bool `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamChat issues a chat completion with stream=true and yields the
// interleaved reasoning_content/content deltas in arrival order. The
// delta channel is closed at end of stream; at most one error is sent
// to the error channel. A stream, once begun, is never retried.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (<-chan Delta, <-chan error) {
	out := make(chan Delta)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		data, err := json.Marshal(streamChatRequest{ChatRequest: req, Stream: true})
		if err != nil {
			errCh <- err
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
		if err != nil {
			errCh <- err
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			errCh <- fmt.Errorf("llm: stream request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errCh <- fmt.Errorf("llm: stream request returned status %d", resp.StatusCode)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				break
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.ReasoningContent == "" && delta.Content == "" {
				continue
			}
			out <- Delta{Reasoning: delta.ReasoningContent, Content: delta.Content}
		}

		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("llm: reading stream: %w", err)
		}
	}()

	return out, errCh
}
