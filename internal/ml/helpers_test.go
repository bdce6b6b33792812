package ml

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/features"
)

func rawRecord(precipitation float64, danger int, avalanche bool) features.RawRecord {
	return features.RawRecord{
		Region:        3011,
		Date:          time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC),
		Weekday:       2,
		DangerLevel:   danger,
		Precipitation: precipitation,
		WindStrength:  "Bris",
		TempMin:       -5,
		TempMax:       1,
		ProblemProbabilities: map[int]float64{
			0: 0, 3: 2, 5: 0, 7: 3, 10: 0, 30: 0, 45: 0, 50: 0,
		},
		Avalanche: features.BoolPtr(avalanche),
	}
}

// separableSamples returns scaled samples where the danger level feature
// alone decides the label.
func separableSamples(n int, rng *rand.Rand) []features.Sample {
	out := make([]features.Sample, n)
	for i := range out {
		avalanche := i%2 == 0
		var v features.FeatureVector
		for j := range v {
			v[j] = rng.Float64()
		}
		if avalanche {
			v[4] = 0.7 + 0.3*rng.Float64()
		} else {
			v[4] = 0.3 * rng.Float64()
		}
		out[i] = features.Sample{Features: v, Avalanche: avalanche}
	}
	return out
}

func unitScaler() ScalerParams {
	ranges := make([]FeatureRange, features.NumFeatures)
	for i := range ranges {
		ranges[i] = FeatureRange{Feature: features.FeatureNames[i], Min: 0, Max: 1}
	}
	return ScalerParams{Ranges: ranges}
}

// testArtifact builds an untrained artifact whose scaler is fitted on records.
func testArtifact(t *testing.T, records []features.RawRecord) *ModelArtifact {
	t.Helper()

	vectors := make([]features.FeatureVector, len(records))
	for i, r := range records {
		v, err := features.Encode(r)
		require.NoError(t, err)
		vectors[i] = v
	}
	scaler, err := FitScaler(vectors)
	require.NoError(t, err)

	net := newNetwork(layerSizes(6), rand.New(rand.NewSource(5)))
	return &ModelArtifact{
		ID:        "test-model",
		CreatedAt: time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC),
		Layers:    net.params(),
		Scaler:    scaler,
		net:       net,
	}
}

func fitRecords() []features.RawRecord {
	return []features.RawRecord{
		rawRecord(0, 1, false),
		rawRecord(40, 4, true),
		rawRecord(12, 2, false),
		rawRecord(25, 3, true),
	}
}
