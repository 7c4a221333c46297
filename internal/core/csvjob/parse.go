package csvjob

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ParseCSV validates the header and returns the data rows that carry at
// least one url column. Shorter rows are dropped.
func ParseCSV(text string) ([]Row, error) {
	text = strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
	if text == "" {
		return nil, ErrEmptyInput
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil || !slices.Equal(header, Header) {
		return nil, ErrInvalidSchema
	}

	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed CSV: %w", err)
		}
		if len(rec) < 3 {
			continue
		}

		urls := make([]string, 0, len(rec)-2)
		for _, u := range rec[2:] {
			urls = append(urls, strings.TrimSpace(u))
		}
		rows = append(rows, Row{SerialNumber: rec[0], ProductName: rec[1], URLs: urls})
	}
	return rows, nil
}

var (
	ErrEmptyInput    = errors.New("CSV data is empty")
	ErrInvalidSchema = errors.New("invalid CSV format: missing required columns")
)
