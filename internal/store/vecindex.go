package store

import (
	"math"
	"sort"
	"sync"

	"github.com/brunobiangulo/alchemy/internal/ingest"
)

// vectorEntry is one row of the in-memory vector index.
type vectorEntry struct {
	recordID string
	record   ingest.Record
	vector   []float32
}

// VectorIndex is a flat in-memory array of vectors with a parallel
// record_id -> record map, searched by brute-force L2 distance.
// Exact search over a flat array holds up to roughly 1e6 vectors;
// nothing larger is in scope here.
type VectorIndex struct {
	mu         sync.RWMutex
	entries    []vectorEntry
	tombstoned map[string]bool
}

func newVectorIndex() *VectorIndex {
	return &VectorIndex{tombstoned: make(map[string]bool)}
}

// add appends a vector entry to the index. Re-adding a record_id that
// was tombstoned (via remove) replaces its old entry in place and clears
// the tombstone, so repeated ingests of the same file neither grow the
// index nor bring the stale vector back into search.
func (idx *VectorIndex) add(r ingest.Record) {
	if len(r.Vector) == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	entry := vectorEntry{recordID: r.RecordID, record: r, vector: r.Vector}
	if idx.tombstoned[r.RecordID] {
		delete(idx.tombstoned, r.RecordID)
		for i, e := range idx.entries {
			if e.recordID == r.RecordID {
				idx.entries[i] = entry
				return
			}
		}
	}
	idx.entries = append(idx.entries, entry)
}

// remove lazily tombstones the given record ids. Tombstoned ids must
// never be returned by search, but the backing
// slice is not compacted until rebuild is called.
func (idx *VectorIndex) remove(recordIDs []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range recordIDs {
		idx.tombstoned[id] = true
	}
}

// rebuild replaces the index contents wholesale, dropping tombstoned
// entries. Used when reloading from the store on startup.
func (idx *VectorIndex) rebuild(records []ingest.Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = idx.entries[:0]
	idx.tombstoned = make(map[string]bool)
	for _, r := range records {
		if len(r.Vector) == 0 {
			continue
		}
		idx.entries = append(idx.entries, vectorEntry{recordID: r.RecordID, record: r, vector: r.Vector})
	}
}

// search returns the topK nearest neighbors to query by L2 distance,
// skipping tombstoned entries, with similarity mapped as
// 10 / (1 + distance).
func (idx *VectorIndex) search(query []float32, topK int) []ScoredRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		entry    vectorEntry
		distance float64
	}
	candidates := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		if idx.tombstoned[e.recordID] {
			continue
		}
		candidates = append(candidates, scored{entry: e, distance: l2Distance(query, e.vector)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]ScoredRecord, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, ScoredRecord{
			Record:     c.entry.record,
			Similarity: 10.0 / (1.0 + c.distance),
		})
	}
	return results
}

func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
