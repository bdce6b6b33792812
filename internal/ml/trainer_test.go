package ml

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/features"
)

func smallConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.HiddenSize = 8
	cfg.BatchSize = 16
	cfg.MaxEpochs = 60
	cfg.LearningRate = 0.01
	return cfg
}

func TestTrain_LearnsSeparableData(t *testing.T) {
	samples := separableSamples(400, rand.New(rand.NewSource(1)))
	metrics := &MockMetrics{}

	artifact, err := Train(samples, unitScaler(), smallConfig(), rand.New(rand.NewSource(42)), clockwork.NewFakeClock(), metrics)
	require.NoError(t, err)
	require.True(t, artifact.Loaded())

	diag := artifact.Diagnostics
	assert.Equal(t, 320, diag.TrainRows)
	assert.Equal(t, 40, diag.ValidationRows)
	assert.Equal(t, 40, diag.TestRows)
	assert.GreaterOrEqual(t, diag.TestReport.Accuracy, 0.9)
	assert.Equal(t, 40, diag.TestReport.Total)
	assert.Len(t, diag.Importance, features.NumFeatures)
	assert.Equal(t, "danger_level", diag.Importance[0].Feature)

	assert.NotEmpty(t, artifact.ID)
	assert.Len(t, artifact.Layers, 4)
	assert.Equal(t, diag.Epochs, metrics.Epochs())
}

// The artifact must hold the weights of the best validation epoch, not the
// last one.
func TestTrain_KeepsBestWeights(t *testing.T) {
	samples := separableSamples(200, rand.New(rand.NewSource(1)))
	cfg := smallConfig()
	cfg.LearningRate = 0.05
	cfg.Patience = 2

	metrics := &MockMetrics{}
	artifact, err := Train(samples, unitScaler(), cfg, rand.New(rand.NewSource(7)), clockwork.NewFakeClock(), metrics)
	require.NoError(t, err)

	// Train draws the split first, so the same seed reproduces it.
	parts, err := Split(samples, cfg.ValidationSplit, cfg.TestSplit, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	valX, valY := sampleMatrices(parts.Validation)
	got := crossEntropy(artifact.net.predict(valX), valY)

	diag := artifact.Diagnostics
	assert.InDelta(t, diag.BestValidationLoss, got, 1e-12)

	lowest := metrics.validationLoss[0]
	for _, l := range metrics.validationLoss {
		lowest = min(lowest, l)
	}
	assert.Equal(t, lowest, diag.BestValidationLoss)
	assert.Equal(t, lowest, metrics.validationLoss[diag.BestEpoch-1])
	if diag.StoppedEarly {
		assert.Equal(t, diag.BestEpoch+cfg.Patience, diag.Epochs)
	}
}

func TestTrain_Deterministic(t *testing.T) {
	samples := separableSamples(120, rand.New(rand.NewSource(1)))
	cfg := smallConfig()
	cfg.MaxEpochs = 5

	a, err := Train(samples, unitScaler(), cfg, rand.New(rand.NewSource(3)), clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	b, err := Train(samples, unitScaler(), cfg, rand.New(rand.NewSource(3)), clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, a.Layers, b.Layers)
}

func TestTrain_Errors(t *testing.T) {
	cfg := smallConfig()

	tests := []struct {
		name    string
		samples []features.Sample
		cfg     func(c *TrainConfig)
	}{
		{name: "empty dataset", samples: nil},
		{name: "fewer rows than batch size", samples: separableSamples(10, rand.New(rand.NewSource(1)))},
		{
			name:    "invalid config",
			samples: separableSamples(100, rand.New(rand.NewSource(1))),
			cfg:     func(c *TrainConfig) { c.Patience = 0 },
		},
		{
			name:    "no validation split",
			samples: separableSamples(100, rand.New(rand.NewSource(1))),
			cfg:     func(c *TrainConfig) { c.ValidationSplit = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			if tt.cfg != nil {
				tt.cfg(&c)
			}
			_, err := Train(tt.samples, unitScaler(), c, rand.New(rand.NewSource(1)), nil, nil)
			var trainErr *TrainingError
			require.True(t, errors.As(err, &trainErr), "got %v", err)
		})
	}
}

func TestTrain_RecordsDuration(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC))
	cfg := smallConfig()
	cfg.MaxEpochs = 2

	artifact, err := Train(separableSamples(80, rand.New(rand.NewSource(1))), unitScaler(), cfg, rand.New(rand.NewSource(1)), clock, nil)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), artifact.CreatedAt)
	assert.Equal(t, time.Duration(0), artifact.Diagnostics.Duration)
	assert.Equal(t, 2, artifact.Diagnostics.Epochs)
	assert.Equal(t, cfg, artifact.Diagnostics.Config)
}
