package ingest

import "strings"

// ChunkParams controls chunk_size/chunk_overlap, adapted based on
// total text length before chunking begins.
type ChunkParams struct {
	Size    int
	Overlap int
}

// defaultChunkParams picks chunk_size/chunk_overlap by total text
// length: >10MB -> 5000/500, >1MB -> 2000/400, else 1000/200.
func defaultChunkParams(textLen int) ChunkParams {
	const mb = 1 << 20
	switch {
	case textLen > 10*mb:
		return ChunkParams{Size: 5000, Overlap: 500}
	case textLen > mb:
		return ChunkParams{Size: 2000, Overlap: 400}
	default:
		return ChunkParams{Size: 1000, Overlap: 200}
	}
}

// maxChunksPerDocument is a sanity ceiling against runaway memory:
// stop producing chunks and let the caller log a warning rather than
// silently truncating mid-document.
const maxChunksPerDocument = 5000

var sentenceBoundaries = []string{". ", "\n", "。", "！", "？"}

// boundarySearchWindow bounds the backward scan for a sentence
// boundary when snapping a chunk end.
const boundarySearchWindow = 200

// Chunk splits text into overlapping fragments, snapping each chunk
// end to a nearby sentence boundary when one exists. It returns at
// most maxChunksPerDocument fragments and
// reports whether the cap was hit (so the caller can log a warning).
func Chunk(text string, params ChunkParams) (chunks []string, truncated bool) {
	if params.Size <= 0 {
		params = defaultChunkParams(len(text))
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, false
	}

	start := 0
	for start < n {
		if len(chunks) >= maxChunksPerDocument {
			return chunks, true
		}

		end := start + params.Size
		if end > n {
			end = n
		}

		if end < n {
			if snapped, ok := snapToSentenceBoundary(runes, start, end); ok {
				end = snapped
			}
		}

		frag := strings.TrimSpace(string(runes[start:end]))
		if frag != "" {
			chunks = append(chunks, frag)
		}

		next := end - params.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, false
}

// snapToSentenceBoundary searches backward from end, within
// boundarySearchWindow runes, for the nearest sentence-boundary marker and
// returns the offset just after it.
func snapToSentenceBoundary(runes []rune, start, end int) (int, bool) {
	windowStart := end - boundarySearchWindow
	if windowStart < start {
		windowStart = start
	}

	best := -1
	window := string(runes[windowStart:end])
	for _, marker := range sentenceBoundaries {
		if idx := strings.LastIndex(window, marker); idx >= 0 {
			candidate := windowStart + len([]rune(window[:idx])) + len([]rune(marker))
			if candidate > best {
				best = candidate
			}
		}
	}
	if best <= start {
		return 0, false
	}
	return best, true
}
