package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PlainTextExtractor handles .txt and .log files: read verbatim.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Parse(_ context.Context, path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	content := string(data)
	if content == "" {
		return nil, nil
	}
	return []Section{{Heading: filepath.Base(path), Content: content}}, nil
}

// MarkdownExtractor handles .md files, additionally extracting a
// header outline.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Parse(_ context.Context, path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown file: %w", err)
	}
	content := string(data)
	if content == "" {
		return nil, nil
	}
	outline := ExtractMarkdownOutline(content)
	meta := map[string]string{}
	if len(outline) > 0 {
		meta["has_outline"] = "true"
	}
	return []Section{{Heading: filepath.Base(path), Content: content, Metadata: meta}}, nil
}

// ExtractMarkdownOutline scans for ATX-style (#, ##, ...) headings.
func ExtractMarkdownOutline(content string) []HeaderOutline {
	var outline []HeaderOutline
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		level := 0
		for level < len(trimmed) && level < 6 && trimmed[level] == '#' {
			level++
		}
		if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
			continue
		}
		outline = append(outline, HeaderOutline{
			Level: level,
			Text:  strings.TrimSpace(trimmed[level:]),
		})
	}
	return outline
}

// PDFExtractor handles .pdf files by extracting plain text page by
// page. Image and table extraction are out of scope.
type PDFExtractor struct{}

func (PDFExtractor) Parse(_ context.Context, path string) ([]Section, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	r, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("reading PDF text: %w", err)
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		return nil, nil
	}
	return []Section{{Heading: filepath.Base(path), Content: content}}, nil
}

// DOCXExtractor handles .docx files by walking word/document.xml and
// concatenating run text. Embedded images are ignored.
type DOCXExtractor struct{}

func (DOCXExtractor) Parse(_ context.Context, path string) ([]Section, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	text, err := extractDOCXText(data)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []Section{{Heading: filepath.Base(path), Content: text}}, nil
}

// extractDOCXText walks the WordprocessingML body, emitting a newline at
// each paragraph boundary and a tab at each tab run.
func extractDOCXText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				b.WriteString("\n")
			case "tab":
				b.WriteString("\t")
			}
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String(), nil
}
