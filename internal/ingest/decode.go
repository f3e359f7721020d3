package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Record is one decoded row. Tabular sources fill Fields keyed by the
// header row; unstructured text sources fill Raw and the best-effort
// Tokens split, plus a raw_text field so downstream field lookups stay
// uniform.
type Record struct {
	Fields map[string]string
	Raw    string
	Tokens []string
}

// Get returns the named field, or "" when absent. Missing cells are
// indistinguishable from empty ones on purpose.
func (r Record) Get(key string) string {
	return r.Fields[key]
}

// tokenRuns splits unstructured text on runs of two or more whitespace
// characters. Columns in PDF-extracted text tend to be separated that
// way; single spaces inside a label are preserved.
var tokenRuns = regexp.MustCompile(`\s{2,}`)

// Decode turns raw file bytes into an ordered record sequence based on
// the file name's extension. Unknown extensions fail with
// UnsupportedFileTypeError.
func Decode(name string, data []byte) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return decodeCSV(data)
	case ".xlsx":
		return decodeXLSX(data)
	case ".txt", ".text", ".pdf":
		return decodeText(data), nil
	default:
		return nil, &UnsupportedFileTypeError{Name: name}
	}
}

func decodeCSV(data []byte) ([]Record, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are data, not errors
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return rowsToRecords(rows), nil
}

func decodeXLSX(data []byte) ([]Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return rowsToRecords(rows), nil
}

// rowsToRecords treats the first row as the header and maps every
// subsequent row onto it. Short rows leave trailing fields empty; cells
// beyond the header are dropped.
func rowsToRecords(rows [][]string) []Record {
	if len(rows) == 0 {
		return nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(row) {
				fields[key] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, Record{Fields: fields})
	}
	return records
}

func decodeText(data []byte) []Record {
	lines := strings.Split(string(data), "\n")

	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		var tokens []string
		for _, tok := range tokenRuns.Split(strings.TrimSpace(line), -1) {
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}

		records = append(records, Record{
			Fields: map[string]string{"raw_text": line},
			Raw:    line,
			Tokens: tokens,
		})
	}
	return records
}
