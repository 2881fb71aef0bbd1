package ingest

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// StructuredRow is one row/element produced by a structured extractor,
// ready to be flattened into a Record's data map. Extractors that
// already hold raw JSON set Raw; the others populate Fields.
type StructuredRow struct {
	Fields map[string]string
	Raw    string
}

// StructuredExtractor parses a structured-format file (json, csv, tsv,
// xml, xlsx, xls) into one row per top-level element.
type StructuredExtractor interface {
	Parse(path string) ([]StructuredRow, error)
}

// JSONExtractor handles .json files. A top-level JSON array yields one row
// per element; a top-level object yields a single row.
type JSONExtractor struct{}

func (JSONExtractor) Parse(path string) ([]StructuredRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading JSON file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		rows := make([]StructuredRow, 0, len(v))
		for _, elem := range v {
			encoded, err := json.Marshal(elem)
			if err != nil {
				continue
			}
			rows = append(rows, StructuredRow{Raw: string(encoded)})
		}
		return rows, nil
	default:
		return []StructuredRow{{Raw: string(data)}}, nil
	}
}

// CSVExtractor handles .csv files: one row per data row, keyed by header.
type CSVExtractor struct{ Comma rune }

func (e CSVExtractor) Parse(path string) ([]StructuredRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if e.Comma != 0 {
		r.Comma = e.Comma
	}
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var rows []StructuredRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("reading CSV row: %w", err)
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				fields[col] = rec[i]
			}
		}
		rows = append(rows, StructuredRow{Fields: fields})
	}
	return rows, nil
}

// TSVExtractor handles .tsv files (CSVExtractor with a tab delimiter).
func TSVExtractor() CSVExtractor { return CSVExtractor{Comma: '\t'} }

// XMLExtractor handles .xml files: each direct child of the root element
// becomes one row, with attributes and character content captured as
// flat fields.
type XMLExtractor struct{}

func (XMLExtractor) Parse(path string) ([]StructuredRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading XML file: %w", err)
	}

	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}

	if len(root.Children) == 0 {
		return []StructuredRow{{Fields: map[string]string{"content": strings.TrimSpace(root.CharData)}}}, nil
	}

	rows := make([]StructuredRow, 0, len(root.Children))
	for _, child := range root.Children {
		rows = append(rows, StructuredRow{Fields: xmlNodeToFields(child)})
	}
	return rows, nil
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	CharData string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func xmlNodeToFields(n xmlNode) map[string]string {
	fields := make(map[string]string)
	for _, a := range n.Attrs {
		fields[n.XMLName.Local+"_"+a.Name.Local] = a.Value
	}
	text := strings.TrimSpace(n.CharData)
	if text != "" {
		fields[n.XMLName.Local] = text
	}
	for _, c := range n.Children {
		for k, v := range xmlNodeToFields(c) {
			fields[k] = v
		}
	}
	return fields
}

// XLSXExtractor handles .xlsx/.xls files, one row per sheet row.
type XLSXExtractor struct{}

func (XLSXExtractor) Parse(path string) ([]StructuredRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var rows []StructuredRow
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil || len(sheetRows) == 0 {
			continue
		}

		header := sheetRows[0]
		for _, rec := range sheetRows[1:] {
			fields := map[string]string{"sheet": sheet}
			for i, col := range header {
				if i < len(rec) {
					fields[col] = rec[i]
				}
			}
			rows = append(rows, StructuredRow{Fields: fields})
		}
	}
	return rows, nil
}
