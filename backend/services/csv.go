package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FirstDataRow reads a CSV with a header row and returns the first data
// row as named numeric values. Columns whose cells do not parse as
// numbers are skipped; matching against a detector's declared fields
// happens in the request constructor, which also rejects missing fields.
// There are no multi-row batch semantics.
func FirstDataRow(r io.Reader) (map[string]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	row, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV has no data rows")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV data row: %w", err)
	}

	values := make(map[string]float64)
	for i, name := range header {
		if i >= len(row) {
			break
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			continue
		}
		values[name] = v
	}
	return values, nil
}
