package artifact

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?is)```(html|HTML)?\\s*(.*?)```")
var tagOpen = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)[^>]*>`)

// ExtractHTML pulls an HTML document out of a raw model response:
// a document that already starts with <html> or <!DOCTYPE html> is
// taken as-is, then fenced code blocks are scanned. ok is false only
// when no HTML could be found at all, in which case the caller should
// synthesize an error page.
func ExtractHTML(response string) (html string, ok bool) {
	trimmed := strings.TrimSpace(response)
	if looksLikeDocument(trimmed) {
		return trimmed, true
	}

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		block := strings.TrimSpace(m[2])
		block = strings.TrimPrefix(block, "html")
		block = strings.TrimPrefix(block, "HTML")
		block = strings.TrimSpace(block)

		if looksLikeDocument(block) {
			return block, true
		}
		if from, found := firstWellFormedTag(block); found {
			return from, true
		}
	}

	if from, found := firstWellFormedTag(trimmed); found {
		return from, true
	}

	return "", false
}

func looksLikeDocument(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "<!doctype html>") || strings.HasPrefix(lower, "<html")
}

// firstWellFormedTag finds the first <tag>...</tag> pair in s (tag
// names matched case-insensitively) and returns the substring from the
// opening tag onward.
func firstWellFormedTag(s string) (string, bool) {
	locs := tagOpen.FindAllStringSubmatchIndex(s, -1)
	for _, loc := range locs {
		start := loc[0]
		name := s[loc[2]:loc[3]]
		closing := "</" + name + ">"
		if idx := strings.Index(strings.ToLower(s[loc[1]:]), strings.ToLower(closing)); idx >= 0 {
			return s[start:], true
		}
	}
	return "", false
}

// ErrorPage synthesizes a minimal HTML document reporting that no
// HTML could be extracted from the model's response.
func ErrorPage(query string, reason string) string {
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Artifact generation failed</title></head>" +
		"<body><h1>Artifact generation failed</h1><p>Query: " + escapeHTML(query) + "</p><p>" + escapeHTML(reason) + "</p></body></html>"
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
