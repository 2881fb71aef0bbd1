package alchemy

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	for _, k := range []string{"WORK_DIR", "DB_PATH", "LLM_API_BASE", "GENERATOR_MODEL", "REASONING_MODEL", "EMBEDDING_MODEL", "EMBEDDING_DIM", "LLM_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	t.Setenv("WORK_DIR", "/tmp/workspace")
	t.Setenv("GENERATOR_MODEL", "gen-model")
	t.Setenv("REASONING_MODEL", "reason-model")
	t.Setenv("EMBEDDING_MODEL", "embed-model")
	t.Setenv("LLM_API_KEY", "key-a, key-b ,key-c")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/workspace", cfg.WorkDir)
	require.Equal(t, "gen-model", cfg.GeneratorModel)
	require.Equal(t, "reason-model", cfg.ReasoningModel)
	require.Equal(t, "embed-model", cfg.EmbeddingModel)
	require.Equal(t, []string{"key-a", "key-b", "key-c"}, cfg.LLMAPIKeys)
}

func TestLoadConfigErrorsWithoutAPIKeys(t *testing.T) {
	for _, k := range []string{"LLM_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplitKeys(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitKeys("a,b"))
	require.Equal(t, []string{"a"}, splitKeys(" a "))
	require.Empty(t, splitKeys(""))
}
