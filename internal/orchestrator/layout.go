package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Layout resolves the on-disk directory structure for one alchemy task:
// workDir/data_alchemy/<id>/{status.json, resume_info.json, artifacts/,
// iterations/iter{N}/...}.
type Layout struct {
	WorkDir       string
	AlchemyID     string
	TaskDir       string
	ArtifactsDir  string
	IterationsDir string
}

// NewLayout computes paths and creates the task's top-level directories.
func NewLayout(workDir, alchemyID string) (Layout, error) {
	taskDir := filepath.Join(workDir, "data_alchemy", alchemyID)
	l := Layout{
		WorkDir:       workDir,
		AlchemyID:     alchemyID,
		TaskDir:       taskDir,
		ArtifactsDir:  filepath.Join(taskDir, "artifacts"),
		IterationsDir: filepath.Join(taskDir, "iterations"),
	}
	for _, dir := range []string{l.TaskDir, l.ArtifactsDir, l.IterationsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("orchestrator: creating %s: %w", dir, err)
		}
	}
	return l, nil
}

// IterDir returns the directory for a given iteration number.
func (l Layout) IterDir(iteration int) string {
	return filepath.Join(l.IterationsDir, fmt.Sprintf("iter%d", iteration))
}

var iterDirPattern = regexp.MustCompile(`^iter(\d+)$`)

// NextIteration returns one past the highest existing iterN directory
// under IterationsDir, or 1 if none exist.
func (l Layout) NextIteration() (int, error) {
	entries, err := os.ReadDir(l.IterationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("orchestrator: listing iterations: %w", err)
	}

	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := iterDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// ExistingIterations returns every iteration number present on disk,
// sorted ascending.
func (l Layout) ExistingIterations() ([]int, error) {
	entries, err := os.ReadDir(l.IterationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := iterDirPattern.FindStringSubmatch(e.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				out = append(out, n)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}
