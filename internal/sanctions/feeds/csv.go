package feeds

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"pldft/pkg/platform/text"
)

// Row is one CSV data row keyed by folded header name, so lookups ignore case
// and accents ("Situación" and "SITUACION" reach the same column).
type Row map[string]string

// Get returns the trimmed value of column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[text.Fold(column)])
}

// Table is a decoded CSV document.
type Table struct {
	Header []string
	Rows   []Row
	// Malformed counts rows the CSV reader could not split.
	Malformed int
}

// HasColumn reports whether the header carries column.
func (t *Table) HasColumn(column string) bool {
	want := text.Fold(column)
	for _, h := range t.Header {
		if text.Fold(h) == want {
			return true
		}
	}
	return false
}

// ReadTable parses content whose first line is the header row. A document
// without a header is a ParseError; a header without rows is a legitimate
// empty feed.
func ReadTable(source, content string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Source: source, Reason: "empty document"}
		}
		return nil, &ParseError{Source: source, Reason: "unreadable header row", Err: err}
	}
	keys := make([]string, len(header))
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		keys[i] = text.Fold(header[i])
	}

	table := &Table{Header: header}
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				table.Malformed++
				continue
			}
			return nil, &ParseError{Source: source, Reason: "read rows", Err: err}
		}
		row := make(Row, len(keys))
		for i, key := range keys {
			if i < len(fields) {
				row[key] = fields[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
