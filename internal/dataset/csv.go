package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/ml"
)

// Column names follow the raw dataset produced by ingestion.
const (
	colRegion      = "region"
	colDate        = "date"
	colWeekday     = "weekday"
	colWeekend     = "weekend"
	colRedDay      = "red_day"
	colAvalanche   = "avalanche"
	colDangerLevel = "DangerLevel"
	colNedbor      = "Nedbor"
	colVindstyrke  = "Vindstyrke"
	colTempMin     = "Temperatur_min"
	colTempMax     = "Temperatur_max"
	colProbPrefix  = "AvalProbabilityId_"
)

func requiredColumns() []string {
	cols := []string{colRegion, colDate, colWeekend, colRedDay, colDangerLevel, colNedbor, colVindstyrke, colTempMin, colTempMax}
	for _, id := range features.ProblemTypeIDs {
		cols = append(cols, colProbPrefix+strconv.Itoa(id))
	}
	return cols
}

// LoadCSV parses raw records. A missing required column or an unparsable
// value fails the whole load with an error naming the line and column. The
// avalanche column is optional; without it the records are unlabeled.
func LoadCSV(r io.Reader) ([]features.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int, len(header))
	for i, col := range header {
		indices[strings.TrimSpace(col)] = i
	}
	for _, col := range requiredColumns() {
		if _, ok := indices[col]; !ok {
			return nil, &features.EncodingError{Field: col, Reason: "column missing from CSV header"}
		}
	}

	var records []features.RawRecord
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

		p := rowParser{row: row, indices: indices}
		rec := p.record()
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// rowParser keeps the first parse failure so fields can be read in sequence.
type rowParser struct {
	row     []string
	indices map[string]int
	err     error
}

func (p *rowParser) value(col string) (string, bool) {
	idx, ok := p.indices[col]
	if !ok || idx >= len(p.row) {
		return "", false
	}
	return strings.TrimSpace(p.row[idx]), true
}

func (p *rowParser) fail(col, val, reason string) {
	if p.err == nil {
		p.err = &features.EncodingError{Field: col, Value: val, Reason: reason}
	}
}

func (p *rowParser) str(col string) string {
	v, ok := p.value(col)
	if !ok || v == "" {
		p.fail(col, v, "missing value")
	}
	return v
}

func (p *rowParser) float(col string) float64 {
	s := p.str(col)
	if p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s, "not a number")
	}
	return f
}

func (p *rowParser) int(col string) int {
	f := p.float(col)
	if p.err != nil {
		return 0
	}
	if f != float64(int(f)) {
		p.fail(col, p.row[p.indices[col]], "not an integer")
	}
	return int(f)
}

func (p *rowParser) flag(col string) bool {
	s := p.str(col)
	if p.err != nil {
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s, "not a boolean")
		return false
	}
	return f != 0
}

func (p *rowParser) date(col string) time.Time {
	s := p.str(col)
	if p.err != nil {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	p.fail(col, s, "not a date")
	return time.Time{}
}

// wind accepts the forecast labels and the "0" written by ingestion when the
// forecast carried no wind measurement.
func (p *rowParser) wind(col string) string {
	s := p.str(col)
	if s == "0" {
		return features.WindCalm
	}
	return s
}

func (p *rowParser) record() features.RawRecord {
	rec := features.RawRecord{
		Region:               p.int(colRegion),
		Date:                 p.date(colDate),
		Weekend:              p.flag(colWeekend),
		Holiday:              p.flag(colRedDay),
		DangerLevel:          p.int(colDangerLevel),
		Precipitation:        p.float(colNedbor),
		WindStrength:         p.wind(colVindstyrke),
		TempMin:              p.float(colTempMin),
		TempMax:              p.float(colTempMax),
		ProblemProbabilities: make(map[int]float64, len(features.ProblemTypeIDs)),
	}
	for _, id := range features.ProblemTypeIDs {
		rec.ProblemProbabilities[id] = p.float(colProbPrefix + strconv.Itoa(id))
	}

	if v, ok := p.value(colWeekday); ok && v != "" {
		rec.Weekday = p.int(colWeekday)
	} else {
		rec.Weekday = isoWeekday(rec.Date)
	}
	if v, ok := p.value(colAvalanche); ok && v != "" {
		rec.Avalanche = features.BoolPtr(p.flag(colAvalanche))
	}
	return rec
}

func isoWeekday(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func csvHeader() []string {
	header := []string{colRegion, colDate, colWeekday, colWeekend, colRedDay, colAvalanche,
		colDangerLevel, colNedbor, colVindstyrke, colTempMin, colTempMax}
	for _, id := range features.ProblemTypeIDs {
		header = append(header, colProbPrefix+strconv.Itoa(id))
	}
	return header
}

func recordRow(r features.RawRecord) []string {
	avalanche := ""
	if r.Avalanche != nil {
		avalanche = boolString(*r.Avalanche)
	}
	row := []string{
		strconv.Itoa(r.Region),
		r.Date.Format("2006-01-02"),
		strconv.Itoa(r.Weekday),
		boolString(r.Weekend),
		boolString(r.Holiday),
		avalanche,
		strconv.Itoa(r.DangerLevel),
		formatFloat(r.Precipitation),
		r.WindStrength,
		formatFloat(r.TempMin),
		formatFloat(r.TempMax),
	}
	for _, id := range features.ProblemTypeIDs {
		row = append(row, formatFloat(r.ProblemProbabilities[id]))
	}
	return row
}

// WriteCSV writes records in the format LoadCSV reads.
func WriteCSV(w io.Writer, records []features.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictionsCSV writes the records followed by region name, both scores
// and the predicted label.
func WritePredictionsCSV(w io.Writer, records []features.RawRecord, predictions []ml.Prediction) error {
	if len(records) != len(predictions) {
		return fmt.Errorf("have %d records but %d predictions", len(records), len(predictions))
	}

	cw := csv.NewWriter(w)
	header := append(csvHeader(), "region_name", "avalanche_score", "no_avalanche_score", "Prediction")
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, r := range records {
		p := predictions[i]
		row := append(recordRow(r),
			features.RegionName(r.Region),
			formatFloat(p.Scores[0]),
			formatFloat(p.Scores[1]),
			p.Label.String(),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
