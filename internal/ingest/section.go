package ingest

import "context"

// Section is a logical span of extracted plain text, used by the text-bucket
// extractors (pdf, docx, txt, md, log) before chunking.
type Section struct {
	Heading  string
	Content  string
	Metadata map[string]string
}

// TextExtractor converts one document format into plain-text sections.
// Per-format table/image/vision handling is out of scope here; the
// only concern is plain text out.
type TextExtractor interface {
	Parse(ctx context.Context, path string) ([]Section, error)
}
