// Package filecache tracks per-path processing state so ingestion can skip
// files that have not changed since their last run.
package filecache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxAge is how long an entry survives without being refreshed.
const DefaultMaxAge = 30 * 24 * time.Hour

// Entry records what was known about a file the last time it was processed.
type Entry struct {
	ProcessedAt time.Time `json:"processed_at"`
	Size        int64     `json:"size"`
	RecordCount int       `json:"record_count"`
}

// Cache is a single-writer, path-keyed cache of Entry records, persisted as
// two-space-indented JSON. Writes are deferred: call Close (or use via the
// Open/Close pair) to flush only if something actually changed.
type Cache struct {
	mu       sync.Mutex
	path     string
	maxAge   time.Duration
	logger   *slog.Logger
	entries  map[string]Entry
	modified bool
}

// Options configures Open.
type Options struct {
	MaxAge time.Duration
	Logger *slog.Logger
}

// Open loads the cache file at path, if present, and expires stale entries.
func Open(path string, opts Options) (*Cache, error) {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		path:    path,
		maxAge:  opts.MaxAge,
		logger:  logger,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading file cache: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			logger.Warn("file cache corrupt, starting fresh", "path", path, "error", err)
			c.entries = make(map[string]Entry)
		}
	}

	c.cleanupExpired()
	return c, nil
}

func (c *Cache) cleanupExpired() {
	now := time.Now()
	var expired []string
	for p, e := range c.entries {
		if now.Sub(e.ProcessedAt) > c.maxAge {
			expired = append(expired, p)
		}
	}
	for _, p := range expired {
		delete(c.entries, p)
	}
	if len(expired) > 0 {
		c.modified = true
		c.logger.Info("expired stale file cache entries", "count", len(expired))
	}
}

// Get returns the cached entry for path, if any.
func (c *Cache) Get(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

// Update sets the cached entry for a single path.
func (c *Cache) Update(path string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = e
	c.modified = true
}

// BatchUpdate sets cached entries for many paths at once.
func (c *Cache) BatchUpdate(updates map[string]Entry) {
	if len(updates) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, e := range updates {
		c.entries[p] = e
	}
	c.modified = true
}

// Remove drops cached entries for the given paths.
func (c *Cache) Remove(paths []string) {
	if len(paths) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		delete(c.entries, p)
	}
	c.modified = true
}

// Paths returns a snapshot of all cached paths, used by the caller to detect
// files that have disappeared from the input directories.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	return paths
}

// NeedsUpdate reports whether the file at path must be reprocessed: no
// cache entry exists, or its size or mtime indicates it changed since the
// recorded processing time.
func (c *Cache) NeedsUpdate(path string, size int64, modTime time.Time) bool {
	entry, ok := c.Get(path)
	if !ok {
		return true
	}
	return size != entry.Size || modTime.After(entry.ProcessedAt)
}

// Close flushes the cache to disk if anything changed since Open.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.modified {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating file cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling file cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing file cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("renaming file cache: %w", err)
	}

	c.modified = false
	return nil
}
