package metrics

import "avalanche-predictor/internal/ml"

var _ ml.MetricsInterface = (*MetricsWrapper)(nil)

// MetricsWrapper adapts Metrics to the interfaces the trainer, the engine
// and the ingestion pipeline report through.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) TrainingEpochInc() {
	w.m.TrainingEpochs.Inc()
}

func (w *MetricsWrapper) ValidationLossSet(v float64) {
	w.m.ValidationLoss.Set(v)
}

func (w *MetricsWrapper) TestLossSet(v float64) {
	w.m.TestLoss.Set(v)
}

func (w *MetricsWrapper) TestAccuracySet(v float64) {
	w.m.TestAccuracy.Set(v)
}

func (w *MetricsWrapper) TrainingDurationObserve(v float64) {
	w.m.TrainingDuration.Observe(v)
}

func (w *MetricsWrapper) PredictionInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) ClampedValuesAdd(n int) {
	w.m.ClampedValues.Add(float64(n))
}

func (w *MetricsWrapper) EncodingErrorInc() {
	w.m.EncodingErrors.Inc()
}

func (w *MetricsWrapper) ArtifactAgeSet(v float64) {
	w.m.ArtifactAge.Set(v)
}

func (w *MetricsWrapper) RecordsIngestedAdd(n int) {
	w.m.RecordsIngested.Add(float64(n))
}

// RetrainResult counts a scheduled retraining run as "success" or "failure".
func (w *MetricsWrapper) RetrainResult(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	w.m.RetrainRuns.WithLabelValues(result).Inc()
}
