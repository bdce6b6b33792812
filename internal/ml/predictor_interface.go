// Package ml trains and serves the avalanche classifier: min/max scaling, a
// three hidden layer perceptron with softmax output, early stopping, the
// persisted model artifact and the inference engine that applies it.
//
// Training and inference share one encoding path. The scaler fitted during
// training travels inside the artifact and is the only scaler inference uses.
package ml

import "avalanche-predictor/internal/features"

// PredictorInterface is implemented by anything that can label raw records.
// The server depends on it so handlers can be tested without a trained model.
type PredictorInterface interface {
	// Predict encodes, scales and classifies every record, failing the whole
	// batch on the first record that cannot be encoded.
	Predict(records []features.RawRecord) ([]Prediction, error)

	// PredictEach classifies records independently and reports failures per row.
	PredictEach(records []features.RawRecord) []RowResult
}

// MetricsInterface defines the metrics the trainer and the engine report.
type MetricsInterface interface {
	TrainingEpochInc()
	ValidationLossSet(float64)
	TestLossSet(float64)
	TestAccuracySet(float64)
	TrainingDurationObserve(float64)
	PredictionInc(label string)
	PredictionLatencyObserve(float64)
	ClampedValuesAdd(int)
	EncodingErrorInc()
	ArtifactAgeSet(float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) TrainingEpochInc()                {}
func (NopMetrics) ValidationLossSet(float64)        {}
func (NopMetrics) TestLossSet(float64)              {}
func (NopMetrics) TestAccuracySet(float64)          {}
func (NopMetrics) TrainingDurationObserve(float64)  {}
func (NopMetrics) PredictionInc(string)             {}
func (NopMetrics) PredictionLatencyObserve(float64) {}
func (NopMetrics) ClampedValuesAdd(int)             {}
func (NopMetrics) EncodingErrorInc()                {}
func (NopMetrics) ArtifactAgeSet(float64)           {}

func metricsOrNop(m MetricsInterface) MetricsInterface {
	if m == nil {
		return NopMetrics{}
	}
	return m
}
