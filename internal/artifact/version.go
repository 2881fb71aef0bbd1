package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/pretty"
)

// VersionRecord describes one archived artifact version. Timestamp and
// Query are those of the PromoteVersion call that archived it.
type VersionRecord struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Path      string    `json:"path"`
}

// VersionsInfo is artifacts/artifact_versions/versions_info.json.
type VersionsInfo struct {
	LatestVersion int             `json:"latest_version"`
	Versions      []VersionRecord `json:"versions"`
}

func loadVersionsInfo(path string) (VersionsInfo, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return VersionsInfo{}, nil
	}
	if err != nil {
		return VersionsInfo{}, err
	}
	var info VersionsInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return VersionsInfo{}, fmt.Errorf("parsing versions_info.json: %w", err)
	}
	return info, nil
}

func saveJSON(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	formatted := pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: false})
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, formatted, 0o644)
}

// PromoteVersion archives the current artifacts/artifact.html (if any)
// as the next numbered version, records it in versions_info.json, and
// overwrites artifacts/artifact.html with newContent.
func PromoteVersion(artifactsDir, newContent, query string) error {
	artifactPath := filepath.Join(artifactsDir, "artifact.html")
	versionsDir := filepath.Join(artifactsDir, "artifact_versions")
	versionsInfoPath := filepath.Join(versionsDir, "versions_info.json")

	if existing, err := os.ReadFile(artifactPath); err == nil {
		info, err := loadVersionsInfo(versionsInfoPath)
		if err != nil {
			return err
		}
		next := info.LatestVersion + 1
		versionPath := filepath.Join(versionsDir, fmt.Sprintf("artifact_v%d.html", next))
		if err := os.MkdirAll(versionsDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(versionPath, existing, 0o644); err != nil {
			return err
		}
		info.LatestVersion = next
		info.Versions = append(info.Versions, VersionRecord{
			Version:   next,
			Timestamp: time.Now().UTC(),
			Query:     query,
			Path:      versionPath,
		})
		if err := saveJSON(versionsInfoPath, info); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(artifactPath, []byte(newContent), 0o644)
}
