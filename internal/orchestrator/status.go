package orchestrator

import (
	"os"
	"path/filepath"
	"time"
)

// IterationSummary records what one Process iteration produced.
type IterationSummary struct {
	Iteration               int       `json:"iteration"`
	Timestamp               time.Time `json:"timestamp"`
	Query                   string    `json:"query"`
	Path                    string    `json:"path"`
	Artifacts               []string  `json:"artifacts,omitempty"`
	OptimizationSuggestions []string  `json:"optimization_suggestions,omitempty"`
}

// TaskStatus is the task-level status.json at the root of a task
// directory (distinct from the artifact generator's own
// artifacts/status.json, which tracks artifact versions specifically).
type TaskStatus struct {
	AlchemyID       string             `json:"alchemy_id"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	LatestIteration int                `json:"latest_iteration"`
	Iterations      []IterationSummary `json:"iterations"`
}

func (o *Orchestrator) loadTaskStatus() (TaskStatus, error) {
	var s TaskStatus
	ok, err := loadJSON(filepath.Join(o.layout.TaskDir, "status.json"), &s)
	if err != nil {
		return TaskStatus{}, err
	}
	if !ok {
		s = TaskStatus{AlchemyID: o.layout.AlchemyID, CreatedAt: time.Now().UTC()}
	}
	return s, nil
}

func (o *Orchestrator) saveTaskStatus(s TaskStatus) error {
	return saveJSON(filepath.Join(o.layout.TaskDir, "status.json"), s)
}

func (o *Orchestrator) appendIterationSummary(summary IterationSummary) error {
	status, err := o.loadTaskStatus()
	if err != nil {
		return err
	}
	status.Iterations = append(status.Iterations, summary)
	status.LatestIteration = summary.Iteration
	status.UpdatedAt = summary.Timestamp
	return o.saveTaskStatus(status)
}

func relPath(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}

func dirHasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
