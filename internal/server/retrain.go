package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/ml"
	"avalanche-predictor/internal/pipeline"
)

// ErrRetrainRunning is returned when a retraining run is requested while
// another one is in progress.
var ErrRetrainRunning = errors.New("retraining already in progress")

// RecordSource supplies the labeled records to retrain on.
type RecordSource interface {
	AllRecords() ([]features.RawRecord, error)
}

// RetrainMetrics receives training metrics plus the outcome of each run.
type RetrainMetrics interface {
	ml.MetricsInterface
	RetrainResult(ok bool)
}

// Retrainer trains a new artifact from stored records, persists it and
// swaps it into the engine. Requests in flight keep the artifact they
// started with.
type Retrainer struct {
	source    RecordSource
	engine    *ml.Engine
	modelPath string
	cfg       ml.TrainConfig
	seed      int64
	clock     clockwork.Clock
	metrics   RetrainMetrics

	mu sync.Mutex
}

func NewRetrainer(source RecordSource, engine *ml.Engine, modelPath string, cfg ml.TrainConfig, seed int64, clock clockwork.Clock, metrics RetrainMetrics) *Retrainer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Retrainer{
		source:    source,
		engine:    engine,
		modelPath: modelPath,
		cfg:       cfg,
		seed:      seed,
		clock:     clock,
		metrics:   metrics,
	}
}

// Run performs one retraining. It returns ErrRetrainRunning without waiting
// if a run is already in progress.
func (r *Retrainer) Run(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrRetrainRunning
	}
	defer r.mu.Unlock()

	err := r.run(ctx)
	if r.metrics != nil {
		r.metrics.RetrainResult(err == nil)
	}
	return err
}

func (r *Retrainer) run(ctx context.Context) error {
	records, err := r.source.AllRecords()
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	log.Info().Int("records", len(records)).Msg("retraining model")

	var metrics ml.MetricsInterface
	if r.metrics != nil {
		metrics = r.metrics
	}
	res, err := pipeline.Train(ctx, records, r.cfg, rand.New(rand.NewSource(r.seed)), r.clock, metrics)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if err := res.Artifact.Save(r.modelPath); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}

	old := r.engine.Swap(res.Artifact)
	event := log.Info().
		Str("model_id", res.Artifact.ID).
		Str("path", r.modelPath).
		Float64("accuracy", res.Report.Accuracy)
	if old != nil {
		event = event.Str("previous_model_id", old.ID)
	}
	event.Msg("retrained model swapped in")
	return nil
}

// Schedule returns a cron scheduler that runs the retrainer on spec, a
// standard five-field cron expression or descriptor such as "@daily". The
// caller starts and stops it.
func (r *Retrainer) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := r.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled retraining failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retrain schedule %q: %w", spec, err)
	}
	return c, nil
}
