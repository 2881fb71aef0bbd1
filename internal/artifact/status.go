package artifact

import (
	"encoding/json"
	"os"
	"time"
)

// IterationRecord summarizes one artifact-generating iteration.
type IterationRecord struct {
	Iteration    int       `json:"iteration"`
	Timestamp    time.Time `json:"timestamp"`
	Query        string    `json:"query"`
	ArtifactPath string    `json:"artifact_path"`
}

// ArtifactRef points at the current published artifact.
type ArtifactRef struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is artifacts/status.json.
type Status struct {
	ArtifactID      string            `json:"artifact_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	LatestIteration int               `json:"latest_iteration"`
	OriginalQuery   string            `json:"original_query"`
	Artifact        ArtifactRef       `json:"artifact"`
	Iterations      []IterationRecord `json:"iterations"`
}

// LoadStatus reads status.json, returning a zero-value Status if it
// does not yet exist.
func LoadStatus(path string) (Status, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return Status{}, err
	}
	return s, nil
}

// SaveStatus writes s as two-space-indented JSON.
func SaveStatus(path string, s Status) error {
	return saveJSON(path, s)
}

// AppendIteration records rec and updates the current artifact pointer.
func (s *Status) AppendIteration(rec IterationRecord, artifactPath string) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = rec.Timestamp
	}
	s.LatestIteration = rec.Iteration
	s.OriginalQuery = rec.Query
	s.Artifact = ArtifactRef{Path: artifactPath, Timestamp: rec.Timestamp}
	s.UpdatedAt = rec.Timestamp
	s.Iterations = append(s.Iterations, rec)
}
