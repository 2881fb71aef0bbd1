package llmdispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tidwall/pretty"
)

// ChatMessage is one entry in a History.
type ChatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// History is an ordered message log with an optional system prompt and
// an optional on-disk mirror. When a persist path is set, every
// AddMessage call triggers a save.
type History struct {
	mu           sync.Mutex
	systemPrompt string
	messages     []ChatMessage
	persistPath  string
}

// NewHistory returns an empty history, optionally auto-saving to path.
func NewHistory(persistPath string) *History {
	return &History{persistPath: persistPath}
}

// SetSystemPrompt replaces the system prompt.
func (h *History) SetSystemPrompt(prompt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.systemPrompt = prompt
}

// AddMessage appends a message and, if a persist path is configured,
// saves the history to disk.
func (h *History) AddMessage(role, content string, metadata map[string]any) error {
	h.mu.Lock()
	h.messages = append(h.messages, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	persistPath := h.persistPath
	h.mu.Unlock()

	if persistPath == "" {
		return nil
	}
	return h.SaveToJSON(persistPath)
}

// SystemPrompt returns the current system prompt.
func (h *History) SystemPrompt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.systemPrompt
}

// ClearHistory discards all messages but keeps the system prompt.
func (h *History) ClearHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Messages returns a copy of the current message log.
func (h *History) Messages() []ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ChatMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

type historyFile struct {
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Messages     []ChatMessage `json:"messages"`
}

// SaveToJSON writes the history as two-space-indented JSON.
func (h *History) SaveToJSON(path string) error {
	h.mu.Lock()
	snapshot := historyFile{SystemPrompt: h.systemPrompt, Messages: append([]ChatMessage(nil), h.messages...)}
	h.mu.Unlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	formatted := pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: false})
	return os.WriteFile(path, formatted, 0o644)
}

// LoadFromJSON replaces the history's contents from a previously saved file.
func (h *History) LoadFromJSON(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading history file: %w", err)
	}

	var snapshot historyFile
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("parsing history file: %w", err)
	}

	h.mu.Lock()
	h.systemPrompt = snapshot.SystemPrompt
	h.messages = snapshot.Messages
	h.mu.Unlock()
	return nil
}
