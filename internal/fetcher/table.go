package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a header row plus data rows, as read from a CSV file, an XLSX
// sheet or an HTML table.
type Table struct {
	// Title is the caption of an HTML table, or the nearest heading before it.
	Title  string
	Header []string
	Rows   [][]string
}

// Column returns the index of the first header matching one of names,
// compared case-insensitively after trimming. It returns -1 when none match.
func (t Table) Column(names ...string) int {
	for _, name := range names {
		for i, h := range t.Header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

// Cell returns the trimmed value at row, col or "" when out of range.
func (t Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// ReadCSV reads a headed CSV document. Blank lines are skipped and rows may
// have a variable number of fields.
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var t Table
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, eris.Wrap(err, "fetcher: read csv")
		}
		if blank(record) {
			continue
		}
		if t.Header == nil {
			t.Header = trimAll(record)
			continue
		}
		t.Rows = append(t.Rows, trimAll(record))
	}
	if t.Header == nil {
		return Table{}, eris.New("fetcher: csv has no header row")
	}
	return t, nil
}

// ReadXLSX reads the named sheet (or the first one when sheet is empty) of an
// XLSX workbook. The first non-blank row is the header.
func ReadXLSX(data []byte, sheet string) (Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return Table{}, eris.Wrap(err, "fetcher: open xlsx")
	}

	var s *xlsx.Sheet
	if sheet != "" {
		var ok bool
		if s, ok = f.Sheet[sheet]; !ok {
			return Table{}, eris.Errorf("fetcher: xlsx sheet %q not found", sheet)
		}
	} else {
		if len(f.Sheets) == 0 {
			return Table{}, eris.New("fetcher: xlsx has no sheets")
		}
		s = f.Sheets[0]
	}

	var t Table
	for _, row := range s.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = strings.TrimSpace(cell.String())
		}
		if blank(cells) {
			continue
		}
		if t.Header == nil {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t.Header == nil {
		return Table{}, eris.New("fetcher: xlsx sheet has no header row")
	}
	return t, nil
}

// ReadTabular reads a CSV or XLSX document, chosen by file extension.
func ReadTabular(fileName string, data []byte) (Table, error) {
	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		return ReadXLSX(data, "")
	}
	return ReadCSV(bytes.NewReader(data))
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
