package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseObservationsCSV reads observations exported from the observation
// registry. Required columns are forecast_region and time; an optional
// source column is carried through.
func ParseObservationsCSV(r io.Reader) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	for _, col := range []string{"forecast_region", "time"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	sourceIdx, hasSource := idx["source"]

	var obs []Observation
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		region, err := strconv.Atoi(strings.TrimSpace(row[idx["forecast_region"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid forecast_region: %w", line, err)
		}
		ts, err := parseObservationTime(strings.TrimSpace(row[idx["time"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		o := Observation{Region: region, ObservedAt: ts}
		if hasSource && sourceIdx < len(row) {
			o.Source = strings.TrimSpace(row[sourceIdx])
		}
		obs = append(obs, o)
	}
	return obs, nil
}

func parseObservationTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
