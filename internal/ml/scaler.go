package ml

import (
	"errors"
	"fmt"
	"math"

	"avalanche-predictor/internal/features"
)

// FeatureRange is the observed range of one feature in the training set.
type FeatureRange struct {
	Feature string  `json:"feature"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ScalerParams holds one range per feature, in feature vector order. It is
// fitted once during training and stored in the artifact.
type ScalerParams struct {
	Ranges []FeatureRange `json:"ranges"`
}

// FitScaler records the per-feature minimum and maximum over rows.
func FitScaler(rows []features.FeatureVector) (ScalerParams, error) {
	if len(rows) == 0 {
		return ScalerParams{}, errors.New("cannot fit scaler on an empty dataset")
	}

	ranges := make([]FeatureRange, features.NumFeatures)
	for i := range ranges {
		ranges[i] = FeatureRange{
			Feature: features.FeatureNames[i],
			Min:     math.Inf(1),
			Max:     math.Inf(-1),
		}
	}
	for _, row := range rows {
		for i, v := range row {
			if v < ranges[i].Min {
				ranges[i].Min = v
			}
			if v > ranges[i].Max {
				ranges[i].Max = v
			}
		}
	}
	return ScalerParams{Ranges: ranges}, nil
}

// Validate checks that the params line up with the current feature layout.
func (p ScalerParams) Validate() error {
	if len(p.Ranges) != features.NumFeatures {
		return fmt.Errorf("scaler has %d ranges, want %d", len(p.Ranges), features.NumFeatures)
	}
	for i, r := range p.Ranges {
		if r.Feature != features.FeatureNames[i] {
			return fmt.Errorf("scaler range %d is for %q, want %q", i, r.Feature, features.FeatureNames[i])
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
			return fmt.Errorf("scaler range for %s is not finite", r.Feature)
		}
		if r.Min > r.Max {
			return fmt.Errorf("scaler range for %s has min %v above max %v", r.Feature, r.Min, r.Max)
		}
	}
	return nil
}

// Apply maps every value to [0, 1] using the fitted ranges. Values outside
// the fitted range are clamped and the names of those features are returned.
// A feature that was constant in the training set always maps to 0.
func (p ScalerParams) Apply(v features.FeatureVector) (features.FeatureVector, []string) {
	var out features.FeatureVector
	var clamped []string
	for i, r := range p.Ranges {
		if r.Max == r.Min {
			out[i] = 0
			if v[i] != r.Min {
				clamped = append(clamped, r.Feature)
			}
			continue
		}
		scaled := (v[i] - r.Min) / (r.Max - r.Min)
		switch {
		case scaled < 0:
			scaled = 0
			clamped = append(clamped, r.Feature)
		case scaled > 1:
			scaled = 1
			clamped = append(clamped, r.Feature)
		}
		out[i] = scaled
	}
	return out, clamped
}

// ScaleSamples applies the params to the features of every sample.
func (p ScalerParams) ScaleSamples(samples []features.Sample) []features.Sample {
	out := make([]features.Sample, len(samples))
	for i, s := range samples {
		scaled, _ := p.Apply(s.Features)
		out[i] = features.Sample{Features: scaled, Avalanche: s.Avalanche}
	}
	return out
}
