package dataset

import (
	"fmt"

	"avalanche-predictor/internal/features"
)

// FilterSeason splits records into those the encoder accepts (December to
// March) and the rest. Callers are expected to report the dropped count.
func FilterSeason(records []features.RawRecord) (in, out []features.RawRecord) {
	for _, r := range records {
		if features.InSeason(r.Date) {
			in = append(in, r)
		} else {
			out = append(out, r)
		}
	}
	return in, out
}

// EncodeLabeled encodes every record, failing the whole batch on the first
// bad row.
func EncodeLabeled(records []features.RawRecord) ([]features.Sample, error) {
	samples := make([]features.Sample, 0, len(records))
	for i, r := range records {
		s, err := features.EncodeLabeled(r)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.Key(), err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
