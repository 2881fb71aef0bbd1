package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/alchemy/internal/filecache"
	"github.com/brunobiangulo/alchemy/internal/ingest"
	"github.com/brunobiangulo/alchemy/internal/store"
)

// ProcessStats summarizes one processSourceData run.
type ProcessStats struct {
	UpdateMode      string
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalRecords    int
	RemovedFiles    int
	Errors          []string
	TotalTime       time.Duration
}

// processSourceData walks sourceDir, skips files the file cache says are
// unchanged, parses and embeds the rest through the facade, saves the
// resulting records, and removes entries for files no longer present.
func processSourceData(ctx context.Context, sourceDir string, st *store.Store, cache *filecache.Cache, facade *ingest.Facade, logger *slog.Logger) (ProcessStats, error) {
	start := time.Now()
	stats := ProcessStats{UpdateMode: "incremental"}

	seen := make(map[string]bool)
	var toSave []ingest.Record
	cacheUpdates := make(map[string]filecache.Entry)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		seen[path] = true
		stats.TotalFiles++

		info, err := d.Info()
		if err != nil {
			stats.FailedFiles++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}

		if !cache.NeedsUpdate(path, info.Size(), info.ModTime()) {
			return nil
		}

		records, err := facade.Parse(ctx, path)
		if err != nil {
			stats.FailedFiles++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			logger.Warn("parsing file failed, skipping", "path", path, "error", err)
			return nil
		}

		toSave = append(toSave, records...)
		cacheUpdates[path] = filecache.Entry{
			ProcessedAt: time.Now().UTC(),
			Size:        info.Size(),
			RecordCount: len(records),
		}
		stats.SuccessfulFiles++
		stats.TotalRecords += len(records)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return stats, fmt.Errorf("orchestrator: walking source data: %w", err)
	}

	if len(toSave) > 0 {
		if err := st.Save(ctx, toSave); err != nil {
			return stats, fmt.Errorf("orchestrator: saving records: %w", err)
		}
	}
	cache.BatchUpdate(cacheUpdates)

	var stale []string
	for _, cached := range cache.Paths() {
		if !seen[cached] {
			stale = append(stale, cached)
		}
	}
	if len(stale) > 0 {
		if err := st.RemoveByPaths(ctx, stale); err != nil {
			return stats, fmt.Errorf("orchestrator: removing stale records: %w", err)
		}
		cache.Remove(stale)
		stats.RemovedFiles = len(stale)
	}

	stats.TotalTime = time.Since(start)
	return stats, nil
}
