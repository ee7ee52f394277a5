package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/sentience/backend/internal/review"
)

var ErrEmptyInput = errors.New("csv input has no header row")

// table is a parsed CSV body with a validated header.
type table struct {
	columns map[string]int
	rows    [][]string
}

func (t *table) value(row []string, column string) (string, bool) {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

// readTable parses CSV from r and checks the header for the required
// columns before reading any data row.
func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns, err := review.ValidateColumns(header)
	if err != nil {
		return nil, err
	}

	t := &table{columns: columns}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}
