package ingest

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Flatten walks an arbitrary JSON value and produces a flat string
// map: primitive leaves become flat
// keys (nested names joined with "_"); composite values are stringified as
// JSON into the parent key AND walked further, so both the composite JSON
// and the leaves end up indexed.
func Flatten(jsonValue string) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", gjson.Parse(jsonValue))
	return out
}

// FlattenMap is a convenience wrapper for callers that already hold a
// Go map (e.g. a parsed CSV row) rather than raw JSON text.
func FlattenMap(fields map[string]string) map[string]string {
	var doc string
	for k, v := range fields {
		var err error
		doc, err = sjson.Set(doc, escapeKey(k), v)
		if err != nil {
			continue
		}
	}
	return Flatten(doc)
}

func flattenInto(out map[string]string, prefix string, value gjson.Result) {
	switch {
	case value.IsObject():
		if prefix != "" {
			out[prefix] = value.Raw
		}
		value.ForEach(func(key, val gjson.Result) bool {
			child := key.String()
			if prefix != "" {
				child = prefix + "_" + child
			}
			flattenInto(out, child, val)
			return true
		})
	case value.IsArray():
		if prefix != "" {
			out[prefix] = value.Raw
		}
		i := 0
		value.ForEach(func(_, val gjson.Result) bool {
			child := fmt.Sprintf("%s_%d", prefix, i)
			flattenInto(out, child, val)
			i++
			return true
		})
	default:
		if prefix != "" {
			out[prefix] = value.String()
		}
	}
}

func escapeKey(k string) string {
	return strings.ReplaceAll(k, ".", "_")
}
