// Package registry implements the cross-task registry: a workspace-level
// index of alchemy tasks, file-locked for read-modify-write, backing the
// CLI's list/show/tag/archive/export surface.
package registry

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/pretty"
)

// TaskSummary is one entry in the index, keyed by AlchemyID.
type TaskSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Iterations     int       `json:"iterations"`
	LatestQuery    string    `json:"latest_query"`
	ArtifactsCount int       `json:"artifacts_count"`
	Artifacts      []string  `json:"artifacts"`
	Tags           []string  `json:"tags"`
	IsArchived     bool      `json:"is_archived"`
}

type index struct {
	Tasks map[string]TaskSummary `json:"tasks"`
}

// Registry manages data_alchemy/_index/alchemy_index.json.
type Registry struct {
	workDir   string
	indexPath string
	logger    *slog.Logger
}

// Open loads (or creates) the index under workDir/data_alchemy/_index.
func Open(workDir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	alchemyDir := filepath.Join(workDir, "data_alchemy")
	indexDir := filepath.Join(alchemyDir, "_index")
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: creating index dir: %w", err)
	}

	r := &Registry{
		workDir:   alchemyDir,
		indexPath: filepath.Join(indexDir, "alchemy_index.json"),
		logger:    logger,
	}

	if _, err := os.Stat(r.indexPath); os.IsNotExist(err) {
		if err := r.save(index{Tasks: map[string]TaskSummary{}}); err != nil {
			return nil, err
		}
		if _, err := r.ScanExistingTasks(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) load() (index, error) {
	raw, err := os.ReadFile(r.indexPath)
	if err != nil {
		return index{}, fmt.Errorf("registry: reading index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		r.logger.Warn("registry index corrupt, starting fresh", "error", err)
		return index{Tasks: map[string]TaskSummary{}}, nil
	}
	if idx.Tasks == nil {
		idx.Tasks = map[string]TaskSummary{}
	}
	return idx, nil
}

func (r *Registry) save(idx index) error {
	raw, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("registry: marshaling index: %w", err)
	}
	formatted := pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: false})
	return withLock(r.indexPath, func() error {
		return os.WriteFile(r.indexPath, formatted, 0o644)
	})
}

// withLock runs fn while holding an advisory sibling .lock file,
// retrying the O_EXCL create up to 50 times, 20ms apart, so concurrent
// processes serialize their read-modify-write cycles.
func withLock(path string, fn func() error) error {
	lockPath := path + ".lock"
	var f *os.File
	var err error
	for i := 0; i < 50; i++ {
		f, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("registry: acquiring lock on %s: %w", path, err)
	}
	defer os.Remove(lockPath)
	defer f.Close()
	return fn()
}

// RegisterTask adds a new task entry, generating an ID if alchemyID
// is empty.
func (r *Registry) RegisterTask(alchemyID, query, description string) (TaskSummary, error) {
	idx, err := r.load()
	if err != nil {
		return TaskSummary{}, err
	}
	if alchemyID == "" {
		alchemyID = uuid.NewString()
	} else if _, exists := idx.Tasks[alchemyID]; exists {
		alchemyID = alchemyID + "-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	if description == "" {
		description = "query: " + query
	}
	task := TaskSummary{
		ID:          alchemyID,
		Name:        "task " + alchemyID,
		Description: description,
		Status:      "created",
		CreatedAt:   now,
		UpdatedAt:   now,
		LatestQuery: query,
		Tags:        []string{},
	}
	idx.Tasks[alchemyID] = task
	if err := r.save(idx); err != nil {
		return TaskSummary{}, err
	}
	return task, nil
}

// UpdateTask merges updates into an existing task's mutable fields.
func (r *Registry) UpdateTask(alchemyID string, update func(*TaskSummary)) (TaskSummary, error) {
	idx, err := r.load()
	if err != nil {
		return TaskSummary{}, err
	}
	task, ok := idx.Tasks[alchemyID]
	if !ok {
		return TaskSummary{}, fmt.Errorf("registry: task %q not found", alchemyID)
	}
	update(&task)
	task.UpdatedAt = time.Now().UTC()
	idx.Tasks[alchemyID] = task
	if err := r.save(idx); err != nil {
		return TaskSummary{}, err
	}
	return task, nil
}

// DeleteTask removes alchemyID from the index and, if deleteFiles is
// true, recursively removes its task directory.
func (r *Registry) DeleteTask(alchemyID string, deleteFiles bool) error {
	idx, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := idx.Tasks[alchemyID]; !ok {
		return fmt.Errorf("registry: task %q not found", alchemyID)
	}
	delete(idx.Tasks, alchemyID)
	if err := r.save(idx); err != nil {
		return err
	}
	if deleteFiles {
		taskDir := filepath.Join(r.workDir, alchemyID)
		if err := os.RemoveAll(taskDir); err != nil {
			return fmt.Errorf("registry: deleting task files: %w", err)
		}
	}
	return nil
}

// ArchiveTask / UnarchiveTask flip the is_archived flag.
func (r *Registry) ArchiveTask(alchemyID string) (TaskSummary, error) {
	return r.UpdateTask(alchemyID, func(t *TaskSummary) { t.IsArchived = true })
}

func (r *Registry) UnarchiveTask(alchemyID string) (TaskSummary, error) {
	return r.UpdateTask(alchemyID, func(t *TaskSummary) { t.IsArchived = false })
}

// TagTask / UntagTask add or remove a tag, idempotently.
func (r *Registry) TagTask(alchemyID, tag string) (TaskSummary, error) {
	return r.UpdateTask(alchemyID, func(t *TaskSummary) {
		for _, existing := range t.Tags {
			if existing == tag {
				return
			}
		}
		t.Tags = append(t.Tags, tag)
	})
}

func (r *Registry) UntagTask(alchemyID, tag string) (TaskSummary, error) {
	return r.UpdateTask(alchemyID, func(t *TaskSummary) {
		out := t.Tags[:0]
		for _, existing := range t.Tags {
			if existing != tag {
				out = append(out, existing)
			}
		}
		t.Tags = out
	})
}

// GetTask returns one task by ID.
func (r *Registry) GetTask(alchemyID string) (TaskSummary, bool, error) {
	idx, err := r.load()
	if err != nil {
		return TaskSummary{}, false, err
	}
	t, ok := idx.Tasks[alchemyID]
	return t, ok, nil
}

// ListTasks returns all tasks, optionally including archived ones, sorted
// by ID for deterministic output.
func (r *Registry) ListTasks(includeArchived bool) ([]TaskSummary, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	var out []TaskSummary
	for _, t := range idx.Tasks {
		if !includeArchived && t.IsArchived {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SearchTasks returns tasks whose id, name, description, latest query, or
// tags contain the substring query (case-insensitive).
func (r *Registry) SearchTasks(query string) ([]TaskSummary, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []TaskSummary
	for _, t := range idx.Tasks {
		if strings.Contains(strings.ToLower(t.ID), q) ||
			strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Description), q) ||
			strings.Contains(strings.ToLower(t.LatestQuery), q) ||
			containsTag(t.Tags, q) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsTag(tags []string, q string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// ScanExistingTasks walks the work directory looking for status.json
// files not yet present in the index and registers them.
func (r *Registry) ScanExistingTasks() (int, error) {
	idx, err := r.load()
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(r.workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("registry: scanning work dir: %w", err)
	}

	found := 0
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		alchemyID := entry.Name()
		if _, exists := idx.Tasks[alchemyID]; exists {
			continue
		}

		statusPath := filepath.Join(r.workDir, alchemyID, "status.json")
		raw, err := os.ReadFile(statusPath)
		if err != nil {
			continue
		}

		var status struct {
			LatestIteration int       `json:"latest_iteration"`
			OriginalQuery   string    `json:"original_query"`
			CreatedAt       time.Time `json:"created_at"`
			UpdatedAt       time.Time `json:"updated_at"`
		}
		if err := json.Unmarshal(raw, &status); err != nil {
			r.logger.Warn("skipping unreadable status.json during scan", "task", alchemyID, "error", err)
			continue
		}

		artifacts := collectArtifactPaths(filepath.Join(r.workDir, alchemyID, "iterations"))
		statusLabel := "unknown"
		if status.LatestIteration > 0 {
			statusLabel = "completed"
		}

		idx.Tasks[alchemyID] = TaskSummary{
			ID:             alchemyID,
			Name:           "task " + alchemyID,
			Description:    "query: " + status.OriginalQuery,
			Status:         statusLabel,
			CreatedAt:      status.CreatedAt,
			UpdatedAt:      status.UpdatedAt,
			Iterations:     status.LatestIteration,
			LatestQuery:    status.OriginalQuery,
			ArtifactsCount: len(artifacts),
			Artifacts:      firstN(artifacts, 5),
			Tags:           []string{},
		}
		found++
	}

	if found > 0 {
		if err := r.save(idx); err != nil {
			return found, err
		}
	}
	return found, nil
}

func collectArtifactPaths(iterationsDir string) []string {
	var out []string
	_ = filepath.WalkDir(iterationsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.Contains(filepath.ToSlash(path), "/artifacts/") {
			out = append(out, path)
		}
		return nil
	})
	return out
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ResumeInfo mirrors the per-task resume_info.json written by the
// orchestrator.
type ResumeInfo struct {
	AlchemyID  string    `json:"alchemy_id"`
	Timestamp  time.Time `json:"timestamp"`
	CurrentStep string   `json:"current_step"`
	Query      string    `json:"query,omitempty"`
}

// ResumableTask pairs a task summary with its resume info.
type ResumableTask struct {
	TaskSummary
	ResumeInfo ResumeInfo `json:"resume_info"`
}

// GetResumableTasks returns every task with a resume_info.json, newest
// timestamp first.
func (r *Registry) GetResumableTasks() ([]ResumableTask, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}

	var out []ResumableTask
	for id, task := range idx.Tasks {
		resumePath := filepath.Join(r.workDir, id, "resume_info.json")
		raw, err := os.ReadFile(resumePath)
		if err != nil {
			continue
		}
		var info ResumeInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			continue
		}
		out = append(out, ResumableTask{TaskSummary: task, ResumeInfo: info})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResumeInfo.Timestamp.After(out[j].ResumeInfo.Timestamp)
	})
	return out, nil
}

// ExportCSV writes every task (including archived) to a
// UTF-8-with-BOM CSV file.
func (r *Registry) ExportCSV(outputPath string) error {
	tasks, err := r.ListTasks(true)
	if err != nil {
		return err
	}
	return writeTasksCSV(outputPath, tasks)
}
