// Package pipeline wires the batch stages together: ingestion of forecasts
// and observations into stored records, and training of a model artifact
// from those records.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/ml"
)

// TrainResult is the outcome of one training run.
type TrainResult struct {
	Artifact *ml.ModelArtifact

	// Report evaluates the artifact on every in-season labeled record, before
	// balancing, so it reflects the real label distribution.
	Report ml.Report

	Records     int
	OutOfSeason int
	Positives   int
	Negatives   int
	Balanced    int
}

// Train runs season filtering, encoding, balancing, scaler fitting, scaling
// and classifier training over records. Unlabeled records are skipped.
func Train(ctx context.Context, records []features.RawRecord, cfg ml.TrainConfig, rng *rand.Rand, clock clockwork.Clock, metrics ml.MetricsInterface) (*TrainResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labeled := make([]features.RawRecord, 0, len(records))
	for _, r := range records {
		if r.Labeled() {
			labeled = append(labeled, r)
		}
	}
	if skipped := len(records) - len(labeled); skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("ignoring unlabeled records")
	}

	in, out := dataset.FilterSeason(labeled)
	if len(out) > 0 {
		log.Info().Int("dropped", len(out)).Int("kept", len(in)).Msg("dropped out-of-season records")
	}

	samples, err := dataset.EncodeLabeled(in)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	res := &TrainResult{Records: len(records), OutOfSeason: len(out)}
	res.Positives, res.Negatives = dataset.CountLabels(samples)

	balanced, err := dataset.Balance(samples, rng)
	if err != nil {
		return nil, err
	}
	res.Balanced = len(balanced)
	log.Info().
		Int("positives", res.Positives).
		Int("negatives", res.Negatives).
		Int("balanced", res.Balanced).
		Msg("balanced dataset")

	vectors := make([]features.FeatureVector, len(balanced))
	for i, s := range balanced {
		vectors[i] = s.Features
	}
	scaler, err := ml.FitScaler(vectors)
	if err != nil {
		return nil, &ml.TrainingError{Reason: err.Error()}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	artifact, err := ml.Train(scaler.ScaleSamples(balanced), scaler, cfg, rng, clock, metrics)
	if err != nil {
		return nil, err
	}
	res.Artifact = artifact

	preds, err := ml.Predict(artifact, in)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	res.Report = ml.Evaluate(preds, in)
	log.Info().
		Str("model_id", artifact.ID).
		Float64("accuracy", res.Report.Accuracy).
		Float64("mean_score_avalanche", res.Report.MeanScoreAvalanche).
		Float64("mean_score_no_avalanche", res.Report.MeanScoreNoAvalanche).
		Msg("training pipeline finished")

	return res, nil
}
