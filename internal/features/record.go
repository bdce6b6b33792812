// Package features turns region-day avalanche forecast records into the fixed
// 16-field numeric vectors consumed by the classifier.
//
// The encoding is shared by training and inference; any change to field order,
// category tables or month bits invalidates every persisted model artifact.
package features

import (
	"strconv"
	"time"
)

// NumFeatures is the width of every FeatureVector.
const NumFeatures = 16

// ProblemTypeIDs are the avalanche problem types carried as features, in vector order.
var ProblemTypeIDs = [8]int{0, 3, 5, 7, 10, 30, 45, 50}

// FeatureNames lists the vector fields in order. The names match the column
// headers of the processed dataset.
var FeatureNames = [NumFeatures]string{
	"month_1",
	"month_2",
	"month_3",
	"day_off",
	"danger_level",
	"nedbor",
	"vind_styrke",
	"temperatur_mean",
	"aval_probability_id_0",
	"aval_probability_id_3",
	"aval_probability_id_5",
	"aval_probability_id_7",
	"aval_probability_id_10",
	"aval_probability_id_30",
	"aval_probability_id_45",
	"aval_probability_id_50",
}

// RawRecord is one region-day observation as produced by ingestion.
type RawRecord struct {
	Region        int       `json:"region"`
	Date          time.Time `json:"date"`
	Weekday       int       `json:"weekday"` // 1 = Monday ... 7 = Sunday
	Weekend       bool      `json:"weekend"`
	Holiday       bool      `json:"red_day"`
	DangerLevel   int       `json:"danger_level"`
	Precipitation float64   `json:"nedbor"`
	WindStrength  string    `json:"vindstyrke"`
	TempMin       float64   `json:"temperatur_min"`
	TempMax       float64   `json:"temperatur_max"`

	// ProblemProbabilities is keyed by avalanche problem type id. Every id in
	// ProblemTypeIDs must be present; ingestion zero-fills absent problems.
	ProblemProbabilities map[int]float64 `json:"aval_probability"`

	// Avalanche is nil for unlabeled (inference) rows.
	Avalanche *bool `json:"avalanche,omitempty"`
}

// Labeled reports whether the record carries an avalanche label.
func (r RawRecord) Labeled() bool {
	return r.Avalanche != nil
}

// Key identifies the record by region and calendar day.
func (r RawRecord) Key() string {
	return RecordKey(r.Region, r.Date)
}

// RecordKey formats the region/day identity used by storage and joins.
func RecordKey(region int, date time.Time) string {
	return date.Format("2006-01-02") + "_" + strconv.Itoa(region)
}

// FeatureVector is the encoded, order-significant model input.
type FeatureVector [NumFeatures]float64

// Sample pairs an encoded vector with its label.
type Sample struct {
	Features  FeatureVector
	Avalanche bool
}

// Label returns the one-hot target used by the classifier: index 0 is
// "avalanche", index 1 is "no avalanche".
func (s Sample) Label() [2]float64 {
	if s.Avalanche {
		return [2]float64{1, 0}
	}
	return [2]float64{0, 1}
}

// BoolPtr is a convenience for building labeled records.
func BoolPtr(v bool) *bool {
	return &v
}
