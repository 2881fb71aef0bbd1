package alchemy

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the alchemy engine: the model
// registry entries the dispatcher routes through, and the
// workspace/storage locations the orchestrator and task registry
// operate on. Loaded from environment variables, with a .env file
// (if present) merged in first.
type Config struct {
	// WorkDir is the workspace root under which data_alchemy/<id>/ task
	// directories and the task registry index live.
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// DBPath is the default unified-store location for components that
	// operate outside a per-iteration task directory (e.g. a one-shot
	// ingest command). Per-iteration stores under data_alchemy/ always
	// use their own path regardless of this value.
	DBPath string `json:"db_path" yaml:"db_path"`

	// LLMAPIBase is the base URL of the OpenAI-compatible chat-completions
	// endpoint shared by GeneratorModel and ReasoningModel.
	LLMAPIBase string `json:"llm_api_base" yaml:"llm_api_base"`

	// LLMAPIKeys is the key list for LLMAPIBase; the dispatcher
	// rotates over it round-robin.
	LLMAPIKeys []string `json:"llm_api_keys" yaml:"llm_api_keys"`

	// GeneratorModel is used for intent parsing: keyword and
	// reference-text extraction.
	GeneratorModel string `json:"generator_model" yaml:"generator_model"`

	// ReasoningModel is used for artifact generation and the follow-up
	// query derivation.
	ReasoningModel string `json:"reasoning_model" yaml:"reasoning_model"`

	// EmbeddingModel is the identifier passed to Dispatcher.Embed.
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// EmbeddingDim sizes the vector column and the in-memory vector
	// index; must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference against an Ollama server.
func DefaultConfig() Config {
	return Config{
		WorkDir:        ".",
		DBPath:         "alchemy.db",
		LLMAPIBase:     "http://localhost:11434/v1",
		GeneratorModel: "llama3.1:8b",
		ReasoningModel: "llama3.1:8b",
		EmbeddingModel: "nomic-embed-text",
		EmbeddingDim:   768,
	}
}

// LoadConfig builds a Config from DefaultConfig overlaid with
// environment variables. If a ".env" file exists in the
// current directory it is loaded first (godotenv.Load is a no-op,
// not an error, when the file is absent).
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LLM_API_BASE"); v != "" {
		cfg.LLMAPIBase = v
	}
	if v := os.Getenv("GENERATOR_MODEL"); v != "" {
		cfg.GeneratorModel = v
	}
	if v := os.Getenv("REASONING_MODEL"); v != "" {
		cfg.ReasoningModel = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDim = n
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKeys = splitKeys(v)
	}

	if len(cfg.LLMAPIKeys) == 0 {
		return cfg, ErrInvalidConfig
	}
	return cfg, nil
}

// splitKeys parses LLM_API_KEY as either a single key or a
// comma-separated list.
func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
