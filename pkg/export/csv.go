// Package export renders tabular data for download, as CSV for spreadsheets
// and as PDF for printable reports.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is ordered tabular export content. Each row must align positionally
// with Columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// CSV renders the table as CSV bytes with a UTF-8 BOM so spreadsheet tools
// detect the encoding.
func CSV(t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("csv row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
