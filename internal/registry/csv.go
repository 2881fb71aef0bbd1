package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"alchemy_id", "created_at", "updated_at", "latest_iteration",
	"original_query", "status", "tags", "is_archived",
}

// writeTasksCSV writes tasks as UTF-8-with-BOM CSV so spreadsheet
// tools pick up the encoding.
func writeTasksCSV(path string, tasks []TaskSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("registry: creating csv: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("registry: writing BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		row := []string{
			t.ID,
			t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			t.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			strconv.Itoa(t.Iterations),
			t.LatestQuery,
			t.Status,
			strings.Join(t.Tags, ";"),
			strconv.FormatBool(t.IsArchived),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
