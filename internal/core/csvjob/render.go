package csvjob

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"compressor/internal/core/job"
)

var resultHeader = []string{"Serial Number", "Product Name", "Input Urls", "Output Urls"}

// RenderCSV writes one row per product: serial number, name, then every
// input url followed by every output url. Products without a stored serial
// number get their 1-based position.
func RenderCSV(results *job.ResultMap) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(resultHeader); err != nil {
		return nil, err
	}

	if results != nil {
		idx := 0
		for pair := results.Oldest(); pair != nil; pair = pair.Next() {
			idx++
			serial := pair.Value.SerialNumber
			if serial == "" {
				serial = strconv.Itoa(idx)
			}
			record := make([]string, 0, 2+len(pair.Value.InputURLs)+len(pair.Value.OutputURLs))
			record = append(record, serial, pair.Key)
			record = append(record, pair.Value.InputURLs...)
			record = append(record, pair.Value.OutputURLs...)
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
