package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheGetMiss(t *testing.T) {
	c := NewCache(10, time.Hour)
	_, ok := c.Get("missing")
	require.False(t, ok)
}

func TestCacheStoreAndGet(t *testing.T) {
	c := NewCache(10, time.Hour)
	in := Intent{OriginalQuery: "q"}
	c.Store("q", in)

	got, ok := c.Get("q")
	require.True(t, ok)
	require.Equal(t, in, got)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(10, time.Millisecond)
	c.Store("q", Intent{OriginalQuery: "q"})

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("q")
	require.False(t, ok)
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewCache(2, time.Hour)
	c.entries["a"] = cacheEntry{intent: Intent{OriginalQuery: "a"}, timestamp: time.Now().Add(-2 * time.Minute)}
	c.entries["b"] = cacheEntry{intent: Intent{OriginalQuery: "b"}, timestamp: time.Now().Add(-1 * time.Minute)}

	c.Store("c", Intent{OriginalQuery: "c"})

	_, aPresent := c.Get("a")
	_, bPresent := c.Get("b")
	_, cPresent := c.Get("c")
	require.False(t, aPresent)
	require.True(t, bPresent)
	require.True(t, cPresent)
}
