package features

import (
	"math"
	"strconv"
	"time"
)

// seasonMonth maps the operating season to the month code: December opens the
// season at 0. Months outside the table were never seen in training.
var seasonMonth = map[time.Month]int{
	time.December: 0,
	time.January:  1,
	time.February: 2,
	time.March:    3,
}

// InSeason reports whether the date falls in a month the encoder accepts.
func InSeason(date time.Time) bool {
	_, ok := seasonMonth[date.Month()]
	return ok
}

// MonthCode returns the season month code for the date.
func MonthCode(date time.Time) (int, error) {
	code, ok := seasonMonth[date.Month()]
	if !ok {
		return 0, &EncodingError{
			Field:  "month",
			Value:  strconv.Itoa(int(date.Month())),
			Reason: "outside the December-March operating season",
		}
	}
	return code, nil
}

// MonthBits encodes a month code as three bits, high bit first.
func MonthBits(code int) [3]float64 {
	return [3]float64{
		float64((code >> 2) & 1),
		float64((code >> 1) & 1),
		float64(code & 1),
	}
}

// Encode converts a raw record into its feature vector. It never substitutes
// defaults: any out-of-domain field fails with an *EncodingError.
func Encode(r RawRecord) (FeatureVector, error) {
	var v FeatureVector

	code, err := MonthCode(r.Date)
	if err != nil {
		return v, err
	}
	bits := MonthBits(code)
	v[0], v[1], v[2] = bits[0], bits[1], bits[2]

	if r.Weekend || r.Holiday {
		v[3] = 1
	}

	// 0 is the upstream "not assessed" level.
	if r.DangerLevel < 0 || r.DangerLevel > 5 {
		return v, &EncodingError{Field: "danger_level", Value: strconv.Itoa(r.DangerLevel), Reason: "must be between 0 and 5"}
	}
	v[4] = float64(r.DangerLevel)

	if err := finite("nedbor", r.Precipitation); err != nil {
		return v, err
	}
	v[5] = r.Precipitation

	wind, err := WindOrdinal(r.WindStrength)
	if err != nil {
		return v, err
	}
	v[6] = float64(wind)

	if err := finite("temperatur_min", r.TempMin); err != nil {
		return v, err
	}
	if err := finite("temperatur_max", r.TempMax); err != nil {
		return v, err
	}
	v[7] = (r.TempMin + r.TempMax) / 2

	for i, id := range ProblemTypeIDs {
		field := FeatureNames[8+i]
		p, ok := r.ProblemProbabilities[id]
		if !ok {
			return v, &EncodingError{Field: field, Value: "", Reason: "missing"}
		}
		if err := finite(field, p); err != nil {
			return v, err
		}
		v[8+i] = p
	}

	return v, nil
}

// EncodeLabeled encodes a training record; unlabeled records are rejected.
func EncodeLabeled(r RawRecord) (Sample, error) {
	if r.Avalanche == nil {
		return Sample{}, &EncodingError{Field: "avalanche", Value: "", Reason: "label required for training"}
	}
	v, err := Encode(r)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Features: v, Avalanche: *r.Avalanche}, nil
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &EncodingError{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "not a finite number"}
	}
	return nil
}
