// Package metrics provides Prometheus metrics for the avalanche predictor.
// It covers model training, inference, ingestion and scheduled retraining,
// exposed through the /metrics endpoint of the prediction server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "avalanche"

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	// Training metrics
	TrainingEpochs   prometheus.Counter   // Epochs run across all training runs
	ValidationLoss   prometheus.Gauge     // Validation loss of the latest epoch
	TestLoss         prometheus.Gauge     // Test loss of the latest trained model
	TestAccuracy     prometheus.Gauge     // Test accuracy of the latest trained model
	TrainingDuration prometheus.Histogram // Wall time of a training run
	RetrainRuns      *prometheus.CounterVec

	// Inference metrics
	Predictions       *prometheus.CounterVec // Predictions by label
	PredictionLatency prometheus.Histogram   // Batch scoring latency
	ClampedValues     prometheus.Counter     // Feature values clamped to the training range
	EncodingErrors    prometheus.Counter     // Rows rejected by the encoder
	ArtifactAge       prometheus.Gauge       // Age of the model being served

	// Ingestion metrics
	RecordsIngested prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TrainingEpochs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Total number of training epochs run",
		}),
		ValidationLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_loss",
			Help:      "Validation loss of the most recent epoch",
		}),
		TestLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_loss",
			Help:      "Test loss of the most recently trained model",
		}),
		TestAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_accuracy",
			Help:      "Test accuracy of the most recently trained model",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		RetrainRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrain_runs_total",
			Help:      "Scheduled retraining runs by result",
		}, []string{"result"}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions by label",
		}, []string{"label"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Batch prediction latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		ClampedValues: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamped_values_total",
			Help:      "Feature values clamped to the training range at inference",
		}),
		EncodingErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_errors_total",
			Help:      "Records rejected by the feature encoder",
		}),
		ArtifactAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_age_seconds",
			Help:      "Age of the model artifact being served in seconds",
		}),
		RecordsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Region-day records written by ingestion",
		}),
	}
}
