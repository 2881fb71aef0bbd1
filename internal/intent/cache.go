package intent

import (
	"sync"
	"time"
)

// Cache is a TTL+LRU-by-timestamp query cache: a fixed max size, with
// the single oldest entry (by insertion timestamp) evicted to make
// room for a new one, and expired entries treated as misses.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	intent    Intent
	timestamp time.Time
}

// NewCache builds a query cache with the given max size and TTL;
// zero values default to 1000 entries and a 1 hour TTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{entries: make(map[string]cacheEntry), maxSize: maxSize, ttl: ttl}
}

// Get returns the cached Intent for a raw query string, or false if
// absent or expired. An expired entry is evicted on lookup.
func (c *Cache) Get(query string) (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[query]
	if !ok {
		return Intent{}, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		delete(c.entries, query)
		return Intent{}, false
	}
	return entry.intent, true
}

// Store caches an Intent under its raw query string, evicting the
// single oldest entry first if the cache is already at max size.
func (c *Cache) Store(query string, in Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.timestamp
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[query] = cacheEntry{intent: in, timestamp: time.Now()}
}
