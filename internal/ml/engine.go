package ml

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/features"
)

// Engine serves predictions from the current artifact. Artifacts are
// swapped whole, so a request that started on one artifact finishes on it.
type Engine struct {
	current atomic.Pointer[ModelArtifact]
	clock   clockwork.Clock
	metrics MetricsInterface
	started time.Time

	predictions atomic.Int64
	failures    atomic.Int64
}

// HealthStatus is the engine state reported by the health endpoint.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	ModelLoaded     bool      `json:"model_loaded"`
	ModelID         string    `json:"model_id,omitempty"`
	ModelCreatedAt  time.Time `json:"model_created_at,omitempty"`
	PredictionCount int64     `json:"prediction_count"`
	FailedRows      int64     `json:"failed_rows"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// NewEngine returns an engine with no artifact loaded.
func NewEngine(clock clockwork.Clock, metrics MetricsInterface) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{clock: clock, metrics: metricsOrNop(metrics), started: clock.Now()}
}

// LoadFile loads the artifact at path and makes it current.
func (e *Engine) LoadFile(path string) error {
	a, err := LoadArtifact(path)
	if err != nil {
		return err
	}
	e.Swap(a)
	log.Info().Str("model_id", a.ID).Str("path", path).Time("created_at", a.CreatedAt).Msg("model loaded")
	return nil
}

// Swap installs a new artifact and returns the previous one, if any.
func (e *Engine) Swap(a *ModelArtifact) *ModelArtifact {
	old := e.current.Swap(a)
	e.reportAge(a)
	return old
}

// Current returns the artifact in use, or nil.
func (e *Engine) Current() *ModelArtifact {
	return e.current.Load()
}

// Predict scores a batch, failing it on the first bad record.
func (e *Engine) Predict(records []features.RawRecord) ([]Prediction, error) {
	a := e.current.Load()
	if a == nil {
		return nil, &ModelNotLoadedError{}
	}

	start := e.clock.Now()
	preds, err := Predict(a, records)
	if err != nil {
		e.failures.Add(1)
		var encErr *features.EncodingError
		if errors.As(err, &encErr) {
			e.metrics.EncodingErrorInc()
		}
		return nil, err
	}
	e.observe(a, preds, start)
	return preds, nil
}

// PredictEach scores records independently and reports failures per row.
func (e *Engine) PredictEach(records []features.RawRecord) []RowResult {
	return e.PredictEachWith(e.current.Load(), records)
}

// PredictEachWith is PredictEach against an artifact the caller already
// holds, so results stay tied to that artifact across a concurrent Swap.
func (e *Engine) PredictEachWith(a *ModelArtifact, records []features.RawRecord) []RowResult {
	start := e.clock.Now()
	results := PredictEach(a, records)

	preds := make([]Prediction, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			e.failures.Add(1)
			var encErr *features.EncodingError
			if errors.As(r.Err, &encErr) {
				e.metrics.EncodingErrorInc()
			}
			continue
		}
		preds = append(preds, r.Prediction)
	}
	if a != nil {
		e.observe(a, preds, start)
	}
	return results
}

func (e *Engine) observe(a *ModelArtifact, preds []Prediction, start time.Time) {
	e.metrics.PredictionLatencyObserve(e.clock.Since(start).Seconds())
	e.reportAge(a)

	e.predictions.Add(int64(len(preds)))

	var avalanches, clamped int
	for _, p := range preds {
		e.metrics.PredictionInc(p.Label.String())
		if p.Label == Avalanche {
			avalanches++
		}
		clamped += len(p.Clamped)
	}
	if clamped > 0 {
		e.metrics.ClampedValuesAdd(clamped)
	}
	log.Debug().
		Str("model_id", a.ID).
		Int("rows", len(preds)).
		Int("avalanche", avalanches).
		Int("no_avalanche", len(preds)-avalanches).
		Int("clamped_values", clamped).
		Msg("batch scored")
}

func (e *Engine) reportAge(a *ModelArtifact) {
	if a == nil {
		return
	}
	e.metrics.ArtifactAgeSet(e.clock.Since(a.CreatedAt).Seconds())
}

// Health reports whether a model is loaded along with serving counters.
func (e *Engine) Health() HealthStatus {
	a := e.current.Load()
	status := HealthStatus{
		Healthy:         a.Loaded(),
		ModelLoaded:     a.Loaded(),
		PredictionCount: e.predictions.Load(),
		FailedRows:      e.failures.Load(),
		UptimeSeconds:   e.clock.Since(e.started).Seconds(),
	}
	if a != nil {
		status.ModelID = a.ID
		status.ModelCreatedAt = a.CreatedAt
	}
	return status
}
