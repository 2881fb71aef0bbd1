package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var structuredFormats = map[string]bool{
	"json": true, "csv": true, "tsv": true, "xml": true, "xlsx": true, "xls": true,
}

var textFormats = map[string]bool{
	"txt": true, "log": true, "md": true, "pdf": true, "doc": true, "docx": true,
}

// Facade is the parser facade: dispatch by extension, chunk long text,
// and produce Records enriched with metadata and (optionally) a vector.
type Facade struct {
	logger   *slog.Logger
	embedder Embedder

	structured map[string]StructuredExtractor
	text       map[string]TextExtractor
}

// NewFacade builds a Facade with the built-in extractors registered
// for every supported extension.
func NewFacade(embedder Embedder, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		logger:   logger,
		embedder: embedder,
		structured: map[string]StructuredExtractor{
			"json": JSONExtractor{},
			"csv":  CSVExtractor{},
			"tsv":  TSVExtractor(),
			"xml":  XMLExtractor{},
			"xlsx": XLSXExtractor{},
			"xls":  XLSXExtractor{},
		},
		text: map[string]TextExtractor{
			"txt":  PlainTextExtractor{},
			"log":  PlainTextExtractor{},
			"md":   MarkdownExtractor{},
			"pdf":  PDFExtractor{},
			"docx": DOCXExtractor{},
			// "doc" has no native extractor (legacy binary format;
			// conversion needs an external tool). It falls through to
			// the binary bucket below.
		},
	}
}

// Parse dispatches path by extension and returns the records it produces.
// A parse failure is returned to the caller, which logs it and goes on
// with the remaining files.
func (f *Facade) Parse(ctx context.Context, path string) ([]Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	fileName := filepath.Base(path)
	processedAt := time.Now().UTC()

	switch {
	case structuredFormats[ext]:
		extractor, ok := f.structured[ext]
		if !ok {
			return nil, fmt.Errorf("no structured extractor for %s", ext)
		}
		rows, err := extractor.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return f.recordsFromStructuredRows(ctx, path, fileName, ext, processedAt, rows), nil

	case textFormats[ext] && f.text[ext] != nil:
		extractor := f.text[ext]
		sections, err := extractor.Parse(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return f.recordsFromSections(ctx, path, fileName, ext, processedAt, sections), nil

	default:
		fields, err := BinaryRecord(path, info)
		if err != nil {
			return nil, fmt.Errorf("describing binary %s: %w", path, err)
		}
		return []Record{f.newRecord(path, fileName, ext, processedAt, 0, fields, nil)}, nil
	}
}

func (f *Facade) recordsFromStructuredRows(ctx context.Context, path, fileName, ext string, processedAt time.Time, rows []StructuredRow) []Record {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		var data map[string]string
		if row.Raw != "" {
			data = Flatten(row.Raw)
		} else {
			data = FlattenMap(row.Fields)
		}
		vector := f.embed(ctx, data)
		records = append(records, f.newRecord(path, fileName, ext, processedAt, i, data, vector))
	}
	return records
}

func (f *Facade) recordsFromSections(ctx context.Context, path, fileName, ext string, processedAt time.Time, sections []Section) []Record {
	var records []Record
	subID := 0

	for _, sec := range sections {
		params := defaultChunkParams(len(sec.Content))
		chunks, truncated := Chunk(sec.Content, params)
		if truncated {
			f.logger.Warn("chunk cap reached, remaining text dropped", "path", path, "heading", sec.Heading)
		}

		totalChunks := len(chunks)
		for idx, chunkText := range chunks {
			data := map[string]string{
				"content":          chunkText,
				"chunk_id":         fmt.Sprintf("%d", idx),
				"total_chunks":     fmt.Sprintf("%d", totalChunks),
				"chunk_char_count": fmt.Sprintf("%d", len([]rune(chunkText))),
			}
			if sec.Heading != "" {
				data["heading"] = sec.Heading
			}
			for k, v := range sec.Metadata {
				data[k] = v
			}
			if ext == "md" {
				if outline := ExtractMarkdownOutline(chunkText); len(outline) > 0 {
					data["header_outline"] = outlineJSON(outline)
				}
			}

			vector := f.embed(ctx, data)
			records = append(records, f.newRecord(path, fileName, ext, processedAt, subID, data, vector))
			subID++
		}
	}
	return records
}

func (f *Facade) embed(ctx context.Context, data map[string]string) []float32 {
	if f.embedder == nil {
		return nil
	}
	text := BuildVectorText(data)
	if text == "" {
		return nil
	}
	vec, err := f.embedder.Embed(ctx, text)
	if err != nil {
		f.logger.Warn("embedding failed, record stored without vector", "error", err)
		return nil
	}
	return vec
}

func (f *Facade) newRecord(path, fileName, ext string, processedAt time.Time, subID int, data map[string]string, vector []float32) Record {
	return Record{
		RecordID:    recordID(path, subID),
		FilePath:    path,
		FileName:    fileName,
		FileType:    ext,
		ProcessedAt: processedAt,
		SubID:       subID,
		Data:        data,
		Vector:      vector,
	}
}

// recordID derives a stable, opaque primary key from (file_path, sub_id) so
// re-ingesting the same file produces a deterministic id sequence.
func recordID(path string, subID int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s#%d", path, subID)))
	return hex.EncodeToString(sum[:])
}

func outlineJSON(outline []HeaderOutline) string {
	var b strings.Builder
	b.WriteString("[")
	for i, o := range outline {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"level":%d,"text":%q}`, o.Level, o.Text)
	}
	b.WriteString("]")
	return b.String()
}
