package feeder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
)

// CSVFeeder serves the rows of a CSV file whose first row names the fields.
type CSVFeeder struct {
	records
}

func NewCSVFeeder(path string) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("CSV file must have a header row and at least one data row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	f := &CSVFeeder{}
	f.rows = make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		rec := make(Record, len(header))
		for j, field := range header {
			rec[field] = row[j]
		}
		f.rows = append(f.rows, rec)
	}
	return f, nil
}
