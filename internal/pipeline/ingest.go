package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/forecast"
	"avalanche-predictor/internal/repository"
)

// WarningFetcher is the part of the forecast client ingestion needs.
type WarningFetcher interface {
	FetchWarnings(ctx context.Context, from, to time.Time) ([]forecast.Warning, error)
}

// RecordStore persists merged records.
type RecordStore interface {
	StoreRecords(records []features.RawRecord) error
}

// IngestMetrics receives the number of records written by a run. May be nil.
type IngestMetrics interface {
	RecordsIngestedAdd(n int)
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Warnings     int
	Observations int
	Records      []features.RawRecord
	Avalanches   int
}

// Ingest fetches warnings for each season, joins them with the region-day
// calendar and the observed avalanches, and stores the labeled records.
func Ingest(ctx context.Context, fetcher WarningFetcher, repo repository.ObservationRepository, store RecordStore, seasons, regions []int, metrics IngestMetrics) (*IngestResult, error) {
	if len(seasons) == 0 || len(regions) == 0 {
		return nil, fmt.Errorf("ingest needs at least one season and one region")
	}

	res := &IngestResult{}
	var forecasts []features.RawRecord
	for _, season := range seasons {
		from, to := forecast.SeasonRange([]int{season})
		warnings, err := fetcher.FetchWarnings(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch warnings for season %d: %w", season, err)
		}
		recs, err := forecast.ToRecords(warnings)
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", season, err)
		}
		res.Warnings += len(warnings)
		forecasts = append(forecasts, recs...)
		log.Info().Int("season", season).Int("warnings", len(warnings)).Msg("fetched warnings")
	}

	from, to := forecast.SeasonRange(seasons)
	observations, err := repo.ListObservations(from, to)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	res.Observations = len(observations)

	res.Records = forecast.Merge(forecast.Calendar(seasons, regions), forecasts, observations)
	for _, r := range res.Records {
		if r.Avalanche != nil && *r.Avalanche {
			res.Avalanches++
		}
	}

	if err := store.StoreRecords(res.Records); err != nil {
		return nil, fmt.Errorf("store records: %w", err)
	}
	if metrics != nil {
		metrics.RecordsIngestedAdd(len(res.Records))
	}

	log.Info().
		Int("records", len(res.Records)).
		Int("avalanches", res.Avalanches).
		Int("observations", res.Observations).
		Msg("ingestion complete")

	return res, nil
}
