package geodata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Dataset is the JSON document a cleaned CSV upload is converted to.
type Dataset struct {
	Metadata DatasetMetadata  `json:"metadata"`
	Data     []map[string]any `json:"data"`
}

type DatasetMetadata struct {
	Count       int      `json:"count"`
	GeneratedAt string   `json:"generated_at"`
	Columns     []string `json:"columns"`
}

// coordinateBounds maps coordinate columns to their inclusive valid range.
var coordinateBounds = map[string][2]float64{
	"latitude":  {-90, 90},
	"longitude": {-180, 180},
}

// CleanCSV parses a CSV document with a header row and drops duplicate
// rows. When both latitude and longitude columns are present, rows with an
// empty coordinate are dropped. Rows whose coordinate is not a number in
// range are dropped whenever that column exists.
func CleanCSV(r io.Reader, now time.Time) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty csv", ErrInvalidContent)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
		index[columns[i]] = i
	}

	_, hasLat := index["latitude"]
	_, hasLon := index["longitude"]
	requireCoordinates := hasLat && hasLon

	seen := make(map[string]struct{})
	records := make([]map[string]any, 0)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}

		// Short rows are padded, extra fields ignored.
		values := make([]string, len(columns))
		copy(values, row)

		key := strings.Join(values, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if !validCoordinates(values, index, requireCoordinates) {
			continue
		}

		record := make(map[string]any, len(columns))
		for i, name := range columns {
			record[name] = cellValue(values[i])
		}
		records = append(records, record)
	}

	return &Dataset{
		Metadata: DatasetMetadata{
			Count:       len(records),
			GeneratedAt: now.UTC().Format(time.RFC3339),
			Columns:     columns,
		},
		Data: records,
	}, nil
}

func validCoordinates(values []string, index map[string]int, required bool) bool {
	for column, bounds := range coordinateBounds {
		i, ok := index[column]
		if !ok {
			continue
		}

		raw := strings.TrimSpace(values[i])
		if raw == "" {
			if required {
				return false
			}
			continue
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v < bounds[0] || v > bounds[1] {
			return false
		}
	}
	return true
}

// cellValue keeps numbers numeric in the JSON output and maps empty cells to null.
func cellValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil && json.Valid([]byte(trimmed)) {
		return json.Number(trimmed)
	}
	return raw
}
