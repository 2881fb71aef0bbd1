// Package artifact implements the artifact generator: it turns a
// set of context files plus the original query into a single HTML
// document, with versioning and a follow-up query suggestion.
package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// FileInfo describes one assembled context file for the audit manifest.
type FileInfo struct {
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	LastModified time.Time `json:"last_modified"`
	AbsolutePath string    `json:"absolute_path"`
}

// Manifest is the audit record persisted alongside an assembled context.
type Manifest struct {
	FilePaths  []string  `json:"file_paths"`
	Timestamp  time.Time `json:"timestamp"`
	TotalCount int       `json:"total_count"`
}

// Context is the result of assembling a set of seed files plus every
// file_path reference found inside their JSON payloads.
type Context struct {
	Contents map[string]string
	Infos    map[string]FileInfo
	Manifest Manifest
}

// Assemble expands seedPaths by following every "file_path" value found
// recursively in each file's JSON payload (when the file parses as
// JSON), deduplicates, and reads every resulting file as UTF-8,
// falling back to Latin-1 on a decode error.
func Assemble(seedPaths []string) (Context, error) {
	visited := make(map[string]bool)
	queue := append([]string(nil), seedPaths...)

	contents := make(map[string]string)
	infos := make(map[string]FileInfo)

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		contents[path] = decode(raw)

		info, err := os.Stat(path)
		if err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			infos[path] = FileInfo{
				FileName:     filepath.Base(path),
				FileSize:     info.Size(),
				LastModified: info.ModTime().UTC(),
				AbsolutePath: abs,
			}
		}

		if gjson.ValidBytes(raw) {
			var refs []string
			collectFilePathRefs(gjson.ParseBytes(raw), &refs)
			for _, ref := range refs {
				if !visited[ref] {
					queue = append(queue, ref)
				}
			}
		}
	}

	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return Context{
		Contents: contents,
		Infos:    infos,
		Manifest: Manifest{
			FilePaths:  paths,
			Timestamp:  time.Now().UTC(),
			TotalCount: len(paths),
		},
	}, nil
}

// collectFilePathRefs walks a parsed JSON value and appends every
// string found under a "file_path" key, at any depth.
func collectFilePathRefs(value gjson.Result, out *[]string) {
	switch {
	case value.IsObject():
		value.ForEach(func(k, v gjson.Result) bool {
			if k.String() == "file_path" && v.Type == gjson.String {
				*out = append(*out, v.String())
			}
			collectFilePathRefs(v, out)
			return true
		})
	case value.IsArray():
		value.ForEach(func(_, v gjson.Result) bool {
			collectFilePathRefs(v, out)
			return true
		})
	}
}

// decode returns raw as a string, decoding as Latin-1 if it is not
// valid UTF-8.
func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
