package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/forecast"
	"avalanche-predictor/internal/ml"
	"avalanche-predictor/internal/repository"
)

// labeledRecords builds n in-season records where a high danger level means
// an avalanche was observed, plus a few rows the pipeline must drop.
func labeledRecords(n int, rng *rand.Rand) []features.RawRecord {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]features.RawRecord, 0, n+2)
	for i := 0; i < n; i++ {
		avalanche := i%3 == 0
		danger := 1 + rng.Intn(2)
		if avalanche {
			danger = 4 + rng.Intn(2)
		}
		out = append(out, features.RawRecord{
			Region:        3003 + i%5,
			Date:          start.AddDate(0, 0, i%60),
			Weekday:       1,
			DangerLevel:   danger,
			Precipitation: rng.Float64() * 30,
			WindStrength:  features.WindLabels()[rng.Intn(8)],
			TempMin:       -10 + rng.Float64()*5,
			TempMax:       -2 + rng.Float64()*5,
			ProblemProbabilities: map[int]float64{
				0: 0, 3: float64(rng.Intn(4)), 5: 0, 7: float64(rng.Intn(4)), 10: 0, 30: 0, 45: 0, 50: 0,
			},
			Avalanche: features.BoolPtr(avalanche),
		})
	}

	summer := out[0]
	summer.Date = time.Date(2023, time.May, 2, 0, 0, 0, 0, time.UTC)
	unlabeled := out[1]
	unlabeled.Avalanche = nil
	return append(out, summer, unlabeled)
}

func smallConfig() ml.TrainConfig {
	cfg := ml.DefaultTrainConfig()
	cfg.HiddenSize = 8
	cfg.BatchSize = 16
	cfg.MaxEpochs = 40
	cfg.LearningRate = 0.01
	return cfg
}

func TestTrain(t *testing.T) {
	records := labeledRecords(300, rand.New(rand.NewSource(3)))
	metrics := &ml.MockMetrics{}

	res, err := Train(context.Background(), records, smallConfig(), rand.New(rand.NewSource(11)), clockwork.NewFakeClock(), metrics)
	require.NoError(t, err)

	assert.Equal(t, 302, res.Records)
	assert.Equal(t, 1, res.OutOfSeason)
	assert.Equal(t, 100, res.Positives)
	assert.Equal(t, 200, res.Negatives)
	assert.Equal(t, 200, res.Balanced)
	assert.Equal(t, 300, res.Report.Total)
	assert.Greater(t, res.Report.Accuracy, 0.8)

	require.NotNil(t, res.Artifact)
	assert.True(t, res.Artifact.Loaded())
	require.NoError(t, res.Artifact.Scaler.Validate())
	assert.Equal(t, 5.0, res.Artifact.Scaler.Ranges[4].Max)
	assert.Equal(t, 1.0, res.Artifact.Scaler.Ranges[4].Min)
	assert.Positive(t, metrics.Epochs())
}

func TestTrain_Errors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	records := labeledRecords(30, rng)

	t.Run("single label", func(t *testing.T) {
		var negatives []features.RawRecord
		for _, r := range records {
			if r.Avalanche != nil && !*r.Avalanche {
				negatives = append(negatives, r)
			}
		}
		_, err := Train(context.Background(), negatives, smallConfig(), rng, clockwork.NewFakeClock(), nil)
		var insufficient *dataset.InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Zero(t, insufficient.Positives)
	})

	t.Run("bad record", func(t *testing.T) {
		bad := append([]features.RawRecord(nil), records...)
		bad[2].WindStrength = "Orkan"
		_, err := Train(context.Background(), bad, smallConfig(), rng, clockwork.NewFakeClock(), nil)
		var encErr *features.EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "vindstyrke", encErr.Field)
	})

	t.Run("fewer rows than batch", func(t *testing.T) {
		cfg := smallConfig()
		cfg.BatchSize = 500
		_, err := Train(context.Background(), records, cfg, rng, clockwork.NewFakeClock(), nil)
		var trainErr *ml.TrainingError
		assert.ErrorAs(t, err, &trainErr)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Train(ctx, records, smallConfig(), rng, clockwork.NewFakeClock(), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type fakeFetcher struct {
	warnings map[int][]forecast.Warning // keyed by season
	calls    int
	err      error
}

func (f *fakeFetcher) FetchWarnings(_ context.Context, from, _ time.Time) ([]forecast.Warning, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.warnings[from.Year()], nil
}

type fakeRepo struct {
	observations []repository.Observation
}

func (r *fakeRepo) SaveObservations(obs []repository.Observation) error {
	r.observations = append(r.observations, obs...)
	return nil
}

func (r *fakeRepo) ListObservations(_, _ time.Time) ([]repository.Observation, error) {
	return r.observations, nil
}

func (r *fakeRepo) Close() error { return nil }

type fakeStore struct {
	records []features.RawRecord
}

func (s *fakeStore) StoreRecords(records []features.RawRecord) error {
	s.records = append(s.records, records...)
	return nil
}

type countingMetrics struct{ n int }

func (c *countingMetrics) RecordsIngestedAdd(n int) { c.n += n }

func warning(region int, day string) forecast.Warning {
	return forecast.Warning{RegionID: region, ValidFrom: day + "T00:00:00", DangerLevel: "2"}
}

func TestIngest(t *testing.T) {
	fetcher := &fakeFetcher{warnings: map[int][]forecast.Warning{
		2022: {
			warning(3011, "2023-01-14"),
			warning(3012, "2023-01-14"),
			warning(3099, "2023-01-14"), // not a configured region
		},
	}}
	repo := &fakeRepo{observations: []repository.Observation{
		{Region: 3011, ObservedAt: time.Date(2023, time.January, 14, 13, 30, 0, 0, time.UTC)},
	}}
	store := &fakeStore{}
	metrics := &countingMetrics{}

	res, err := Ingest(context.Background(), fetcher, repo, store, []int{2022}, []int{3011, 3012}, metrics)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 3, res.Warnings)
	assert.Equal(t, 1, res.Observations)
	assert.Equal(t, 1, res.Avalanches)
	require.Len(t, res.Records, 2)
	assert.Equal(t, res.Records, store.records)
	assert.Equal(t, 2, metrics.n)

	byRegion := map[int]features.RawRecord{}
	for _, r := range res.Records {
		byRegion[r.Region] = r
	}
	require.NotNil(t, byRegion[3011].Avalanche)
	assert.True(t, *byRegion[3011].Avalanche)
	assert.False(t, *byRegion[3012].Avalanche)
	assert.True(t, byRegion[3011].Weekend, "14 January 2023 is a Saturday")
	assert.Equal(t, 6, byRegion[3011].Weekday)
}

func TestIngest_Errors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		fetcher := &fakeFetcher{err: errors.New("boom")}
		_, err := Ingest(context.Background(), fetcher, &fakeRepo{}, &fakeStore{}, []int{2022}, []int{3011}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "season 2022")
	})

	t.Run("no seasons", func(t *testing.T) {
		_, err := Ingest(context.Background(), &fakeFetcher{}, &fakeRepo{}, &fakeStore{}, nil, []int{3011}, nil)
		assert.Error(t, err)
	})
}
