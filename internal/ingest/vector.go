package ingest

import (
	"context"
	"sort"
	"strings"
)

// vectorTextCap bounds the text handed to the embedder.
const vectorTextCap = 512

// Embedder turns text into a fixed-dimension vector. Failure is
// expected and non-fatal: the record's vector is simply omitted.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BuildVectorText concatenates "k: v" pairs for primitive fields (skipping
// any field whose value looks like a serialized JSON subtree, since that's
// already represented by its own leaves) and truncates to vectorTextCap.
func BuildVectorText(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := data[k]
		if looksLikeJSONSubtree(v) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		if b.Len() >= vectorTextCap {
			break
		}
	}

	text := b.String()
	if len(text) > vectorTextCap {
		runes := []rune(text)
		if len(runes) > vectorTextCap {
			runes = runes[:vectorTextCap]
		}
		text = string(runes)
	}
	return text
}

func looksLikeJSONSubtree(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[")
}
