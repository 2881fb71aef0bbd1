package orchestrator

import (
	"os"
	"path/filepath"
	"time"
)

// Step names one stage of the iteration state machine. Each transition
// is a checkpoint boundary.
type Step string

const (
	StepInitialization       Step = "initialization"
	StepPrepareSourceData    Step = "prepare_source_data"
	StepProcessData          Step = "process_data"
	StepInitializeComponents Step = "initialize_components"
	StepExecuteWorkflow      Step = "execute_workflow"
	StepParseIntent          Step = "parse_intent"
	StepBuildPlan            Step = "build_plan"
	StepExecuteSearch        Step = "execute_search"
	StepGenerateArtifact     Step = "generate_artifact"
	StepFinalize             Step = "finalize"
)

// Checkpoint is iter{N}/checkpoint.json.
type Checkpoint struct {
	AlchemyID string    `json:"alchemy_id"`
	Timestamp time.Time `json:"timestamp"`
	Step      Step      `json:"current_step"`
	Iteration int       `json:"iteration"`
}

// saveCheckpoint writes iterDir/checkpoint.json and publishes
// ProcessCheckpoint.
func (o *Orchestrator) saveCheckpoint(iterDir string, cp Checkpoint) error {
	if err := saveJSON(filepath.Join(iterDir, "checkpoint.json"), cp); err != nil {
		return err
	}
	o.events.Publish(ProcessCheckpoint, cp)
	return nil
}

// ResumeInfo is resume_info.json, written both per-task and as a
// workspace-global "latest" pointer.
type ResumeInfo struct {
	AlchemyID string    `json:"alchemy_id"`
	Timestamp time.Time `json:"timestamp"`
	Step      Step      `json:"current_step"`
	Query     string    `json:"query,omitempty"`
}

func (o *Orchestrator) saveResumeInfo(query string) error {
	info := ResumeInfo{
		AlchemyID: o.layout.AlchemyID,
		Timestamp: time.Now().UTC(),
		Step:      o.currentStep,
		Query:     query,
	}
	if err := saveJSON(filepath.Join(o.layout.TaskDir, "resume_info.json"), info); err != nil {
		return err
	}
	globalPath := filepath.Join(o.layout.WorkDir, "data_alchemy", "resume_info.json")
	return saveJSON(globalPath, info)
}

// latestCheckpoint finds the most recently modified checkpoint.json
// across the task's iteration directories. status.json is not read.
func (o *Orchestrator) latestCheckpoint() (Checkpoint, bool, error) {
	iterations, err := o.layout.ExistingIterations()
	if err != nil {
		return Checkpoint{}, false, err
	}

	var best Checkpoint
	var bestMod time.Time
	found := false
	for _, n := range iterations {
		path := filepath.Join(o.layout.IterDir(n), "checkpoint.json")
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !found || info.ModTime().After(bestMod) {
			var cp Checkpoint
			ok, err := loadJSON(path, &cp)
			if err != nil || !ok {
				continue
			}
			best = cp
			bestMod = info.ModTime()
			found = true
		}
	}
	return best, found, nil
}
