package ml

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/features"
)

// TrainConfig controls the classifier shape and the optimization loop.
type TrainConfig struct {
	HiddenSize      int     `json:"hidden_size" yaml:"hidden_size"`
	BatchSize       int     `json:"batch_size" yaml:"batch_size"`
	MaxEpochs       int     `json:"max_epochs" yaml:"max_epochs"`
	Patience        int     `json:"patience" yaml:"patience"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	ValidationSplit float64 `json:"validation_split" yaml:"validation_split"`
	TestSplit       float64 `json:"test_split" yaml:"test_split"`
}

// DefaultTrainConfig returns the settings the production model is trained with.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		HiddenSize:      25,
		BatchSize:       100,
		MaxEpochs:       100,
		Patience:        4,
		LearningRate:    0.001,
		ValidationSplit: 0.1,
		TestSplit:       0.1,
	}
}

func (c TrainConfig) validate() error {
	switch {
	case c.HiddenSize <= 0:
		return fmt.Errorf("hidden size must be positive, got %d", c.HiddenSize)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.MaxEpochs <= 0:
		return fmt.Errorf("max epochs must be positive, got %d", c.MaxEpochs)
	case c.Patience <= 0:
		return fmt.Errorf("patience must be positive, got %d", c.Patience)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	case c.ValidationSplit <= 0 || c.TestSplit < 0 || c.ValidationSplit+c.TestSplit >= 1:
		return fmt.Errorf("invalid split fractions: validation %v, test %v", c.ValidationSplit, c.TestSplit)
	}
	return nil
}

// TrainingDiagnostics describes how a training run went. Not converging
// within MaxEpochs is reported here rather than as an error.
type TrainingDiagnostics struct {
	Config             TrainConfig         `json:"config"`
	TrainRows          int                 `json:"train_rows"`
	ValidationRows     int                 `json:"validation_rows"`
	TestRows           int                 `json:"test_rows"`
	Epochs             int                 `json:"epochs"`
	BestEpoch          int                 `json:"best_epoch"`
	BestValidationLoss float64             `json:"best_validation_loss"`
	StoppedEarly       bool                `json:"stopped_early"`
	TestLoss           float64             `json:"test_loss"`
	TestReport         Report              `json:"test_report"`
	Importance         []FeatureImportance `json:"importance,omitempty"`
	Duration           time.Duration       `json:"duration"`
}

// Train fits the classifier on samples that are already balanced and scaled
// with scaler. The returned artifact carries the weights of the epoch with the
// lowest validation loss together with scaler.
func Train(samples []features.Sample, scaler ScalerParams, cfg TrainConfig, rng *rand.Rand, clock clockwork.Clock, metrics MetricsInterface) (*ModelArtifact, error) {
	metrics = metricsOrNop(metrics)
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if err := cfg.validate(); err != nil {
		return nil, &TrainingError{Reason: err.Error()}
	}
	if len(samples) == 0 {
		return nil, &TrainingError{Reason: "dataset is empty"}
	}
	if len(samples) < cfg.BatchSize {
		return nil, &TrainingError{Reason: fmt.Sprintf("dataset has %d rows, fewer than batch size %d", len(samples), cfg.BatchSize)}
	}
	if err := scaler.Validate(); err != nil {
		return nil, &TrainingError{Reason: err.Error()}
	}

	parts, err := Split(samples, cfg.ValidationSplit, cfg.TestSplit, rng)
	if err != nil {
		return nil, &TrainingError{Reason: err.Error()}
	}
	if len(parts.Validation) == 0 || len(parts.Train) == 0 {
		return nil, &TrainingError{Reason: fmt.Sprintf("split left %d training and %d validation rows", len(parts.Train), len(parts.Validation))}
	}

	start := clock.Now()
	net := newNetwork(layerSizes(cfg.HiddenSize), rng)
	opt := newAdam(cfg.LearningRate, net)
	policy := NewEarlyStopping(cfg.Patience)
	valX, valY := sampleMatrices(parts.Validation)

	diag := TrainingDiagnostics{
		Config:         cfg,
		TrainRows:      len(parts.Train),
		ValidationRows: len(parts.Validation),
		TestRows:       len(parts.Test),
	}

	best := net.clone()
	for epoch := 0; epoch < cfg.MaxEpochs; epoch++ {
		trainLoss := runEpoch(net, opt, parts.Train, cfg.BatchSize, rng)
		valLoss := crossEntropy(net.predict(valX), valY)
		diag.Epochs = epoch + 1

		metrics.TrainingEpochInc()
		metrics.ValidationLossSet(valLoss)
		log.Debug().
			Int("epoch", epoch+1).
			Float64("train_loss", trainLoss).
			Float64("val_loss", valLoss).
			Msg("epoch complete")

		improved, stop := policy.Observe(epoch, valLoss)
		if improved {
			best = net.clone()
		}
		if stop {
			diag.StoppedEarly = true
			break
		}
	}

	diag.BestValidationLoss, diag.BestEpoch = policy.Best()
	diag.BestEpoch++
	if diag.StoppedEarly {
		log.Info().
			Int("epoch", diag.Epochs).
			Int("best_epoch", diag.BestEpoch).
			Float64("best_val_loss", diag.BestValidationLoss).
			Msg("early stopping, restoring best weights")
	} else {
		log.Info().Int("epochs", diag.Epochs).Msg("reached max epochs without early stop")
	}

	if len(parts.Test) > 0 {
		diag.TestLoss, diag.TestReport = evaluateSamples(best, parts.Test)
		diag.Importance = permutationImportance(best, parts.Test, rng)
		metrics.TestLossSet(diag.TestLoss)
		metrics.TestAccuracySet(diag.TestReport.Accuracy)
		log.Info().
			Float64("test_loss", diag.TestLoss).
			Float64("test_accuracy", diag.TestReport.Accuracy).
			Int("test_rows", len(parts.Test)).
			Msg("test diagnostics")
	} else {
		log.Warn().Msg("test split is empty, no test diagnostics")
	}

	diag.Duration = clock.Since(start)
	metrics.TrainingDurationObserve(diag.Duration.Seconds())

	return &ModelArtifact{
		Format:      artifactFormat,
		ID:          uuid.NewString(),
		CreatedAt:   clock.Now().UTC(),
		Features:    featureNames(),
		Layers:      best.params(),
		Scaler:      scaler,
		Diagnostics: diag,
		net:         best,
	}, nil
}

// runEpoch makes one shuffled pass over samples in mini-batches and returns
// the mean batch loss.
func runEpoch(net *network, opt *adam, samples []features.Sample, batchSize int, rng *rand.Rand) float64 {
	order := rng.Perm(len(samples))
	batch := make([]features.Sample, 0, batchSize)

	var total float64
	var batches int
	for start := 0; start < len(order); start += batchSize {
		end := min(start+batchSize, len(order))
		batch = batch[:0]
		for _, idx := range order[start:end] {
			batch = append(batch, samples[idx])
		}
		loss := trainBatch(net, opt, batch)
		total += loss
		batches++
	}
	return total / float64(batches)
}

func trainBatch(net *network, opt *adam, batch []features.Sample) float64 {
	x, y := sampleMatrices(batch)
	loss, dW, dB := net.gradients(x, y)
	opt.apply(net, dW, dB)
	return loss
}
