package alchemy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.LLMAPIKeys = []string{"test-key"}
	return cfg
}

func TestNewRequiresWorkDirAndKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.WorkDir = ""
	_, err := New(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testConfig(t)
	cfg.LLMAPIKeys = nil
	_, err = New(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewAndNewTask(t *testing.T) {
	cfg := testConfig(t)
	engine, err := New(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, engine.Registry())

	task, err := engine.NewTask("")
	require.NoError(t, err)
	require.NotEmpty(t, task.AlchemyID())

	tasks, err := engine.Registry().ListTasks(true)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, task.AlchemyID(), tasks[0].ID)
}

func TestOpenTaskRejectsEmptyID(t *testing.T) {
	engine, err := New(testConfig(t), nil)
	require.NoError(t, err)

	_, err = engine.OpenTask("")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUniqueModelsDedupsAndPreservesOrder(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, uniqueModels("a", "b", "a"))
	require.Equal(t, []string{"a"}, uniqueModels("", "a", ""))
}
