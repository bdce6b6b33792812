package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"avalanche-predictor/internal/features"
)

// Warning is one regional avalanche warning as returned by the archive API.
type Warning struct {
	RegionID          int                `json:"RegionId"`
	RegionName        string             `json:"RegionName"`
	ValidFrom         string             `json:"ValidFrom"`
	DangerLevel       flexValue          `json:"DangerLevel"`
	MountainWeather   *MountainWeather   `json:"MountainWeather"`
	AvalancheProblems []AvalancheProblem `json:"AvalancheProblems"`
}

type MountainWeather struct {
	CloudCoverID     int               `json:"CloudCoverId"`
	MeasurementTypes []MeasurementType `json:"MeasurementTypes"`
}

type MeasurementType struct {
	Name                string               `json:"Name"`
	MeasurementSubTypes []MeasurementSubType `json:"MeasurementSubTypes"`
}

type MeasurementSubType struct {
	Name  string    `json:"Name"`
	Value flexValue `json:"Value"`
}

type AvalancheProblem struct {
	AvalancheProblemTypeID int `json:"AvalancheProblemTypeId"`
	AvalProbabilityID      int `json:"AvalProbabilityId"`
	AvalCauseID            int `json:"AvalCauseId"`
	DestructiveSizeID      int `json:"DestructiveSizeId"`
	AvalTriggerSimpleID    int `json:"AvalTriggerSimpleId"`
}

// flexValue accepts a JSON string, number or null and keeps its text.
type flexValue string

func (v *flexValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexValue(s)
		return nil
	}
	*v = flexValue(data)
	return nil
}

// clean removes the stray characters the archive carries in some values.
func (v flexValue) clean() string {
	s := strings.TrimSpace(string(v))
	s = strings.ReplaceAll(s, "|", "")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

func (v flexValue) float(field string) (float64, error) {
	s := v.clean()
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, &features.EncodingError{Field: field, Value: s, Reason: "not a number"}
	}
	return f, nil
}

// Date returns the calendar day the warning is valid for.
func (w Warning) Date() (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, w.ValidFrom); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, &features.EncodingError{Field: "ValidFrom", Value: w.ValidFrom, Reason: "not a date"}
}

func (w Warning) subValue(measurement, sub string) (flexValue, bool) {
	if w.MountainWeather == nil {
		return "", false
	}
	for _, mt := range w.MountainWeather.MeasurementTypes {
		if mt.Name != measurement {
			continue
		}
		for _, st := range mt.MeasurementSubTypes {
			if st.Name == sub {
				return st.Value, true
			}
		}
	}
	return "", false
}

// ToRecord extracts the forecast part of a raw record: region, date, danger
// level, mountain weather and problem probabilities. Missing weather values
// are zero filled and a missing wind becomes the calm label. Calendar fields
// and the label are added by Merge.
func ToRecord(w Warning) (features.RawRecord, error) {
	date, err := w.Date()
	if err != nil {
		return features.RawRecord{}, err
	}

	rec := features.RawRecord{
		Region:               w.RegionID,
		Date:                 date,
		ProblemProbabilities: make(map[int]float64, len(features.ProblemTypeIDs)),
	}

	danger, err := w.DangerLevel.float("DangerLevel")
	if err != nil {
		return rec, err
	}
	rec.DangerLevel = int(danger)

	precip, _ := w.subValue("Nedbør", "Gjennomsnitt")
	if rec.Precipitation, err = precip.float("Nedbor"); err != nil {
		return rec, err
	}

	tmin, _ := w.subValue("Temperatur", "Min")
	if rec.TempMin, err = tmin.float("Temperatur_min"); err != nil {
		return rec, err
	}
	tmax, _ := w.subValue("Temperatur", "Maks")
	if rec.TempMax, err = tmax.float("Temperatur_max"); err != nil {
		return rec, err
	}

	wind, _ := w.subValue("Vind", "Styrke")
	rec.WindStrength = wind.clean()
	if rec.WindStrength == "" || rec.WindStrength == "0" {
		rec.WindStrength = features.WindCalm
	}

	for _, id := range features.ProblemTypeIDs {
		rec.ProblemProbabilities[id] = 0
	}
	for _, p := range w.AvalancheProblems {
		if _, ok := rec.ProblemProbabilities[p.AvalancheProblemTypeID]; ok {
			rec.ProblemProbabilities[p.AvalancheProblemTypeID] = float64(p.AvalProbabilityID)
		}
	}

	return rec, nil
}

// ToRecords converts warnings, failing on the first one that cannot be read.
func ToRecords(warnings []Warning) ([]features.RawRecord, error) {
	out := make([]features.RawRecord, 0, len(warnings))
	for i, w := range warnings {
		rec, err := ToRecord(w)
		if err != nil {
			return nil, fmt.Errorf("warning %d (region %d, %s): %w", i, w.RegionID, w.ValidFrom, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
