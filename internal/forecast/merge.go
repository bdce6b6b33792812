package forecast

import (
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/repository"
)

// Merge inner-joins calendar rows with forecast records on region and date,
// and labels every joined row by whether an avalanche was observed in that
// region on that day. Output follows calendar order. When the forecast has
// several records for one region-day the first is used.
func Merge(calendar, forecasts []features.RawRecord, observations []repository.Observation) []features.RawRecord {
	byKey := make(map[string]features.RawRecord, len(forecasts))
	duplicates := 0
	for _, f := range forecasts {
		if _, ok := byKey[f.Key()]; ok {
			duplicates++
			continue
		}
		byKey[f.Key()] = f
	}
	if duplicates > 0 {
		log.Warn().Int("duplicates", duplicates).Msg("forecast has duplicate region-days, keeping first")
	}

	observed := make(map[string]bool, len(observations))
	for _, o := range observations {
		observed[features.RecordKey(o.Region, o.ObservedAt.UTC())] = true
	}

	out := make([]features.RawRecord, 0, len(calendar))
	for _, c := range calendar {
		f, ok := byKey[c.Key()]
		if !ok {
			continue
		}
		rec := f
		rec.Weekday = c.Weekday
		rec.Weekend = c.Weekend
		rec.Holiday = c.Holiday
		rec.Avalanche = features.BoolPtr(observed[c.Key()])
		out = append(out, rec)
	}
	return out
}
