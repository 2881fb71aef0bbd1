package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/pretty"
)

// saveJSON writes v to path as two-space-indented JSON, the shared
// format every on-disk state file uses.
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

// loadJSON reads and unmarshals path into v, returning found=false (and
// a nil error) when the file does not exist.
func loadJSON(path string, v any) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}
