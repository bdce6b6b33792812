package ml

import (
	"math/rand"
	"sort"

	"avalanche-predictor/internal/features"
)

// FeatureImportance is the drop in accuracy when one feature column is
// shuffled across the evaluation set.
type FeatureImportance struct {
	Feature          string  `json:"feature"`
	PermutationScore float64 `json:"permutation_score"`
}

// permutationImportance scores every feature against the baseline accuracy
// on samples. The result is sorted by score, highest first.
func permutationImportance(net *network, samples []features.Sample, rng *rand.Rand) []FeatureImportance {
	if len(samples) == 0 {
		return nil
	}
	_, baseline := evaluateSamples(net, samples)

	shuffled := make([]features.Sample, len(samples))
	out := make([]FeatureImportance, 0, features.NumFeatures)
	for f := 0; f < features.NumFeatures; f++ {
		copy(shuffled, samples)
		perm := rng.Perm(len(samples))
		for i, j := range perm {
			shuffled[i].Features[f] = samples[j].Features[f]
		}
		_, report := evaluateSamples(net, shuffled)
		out = append(out, FeatureImportance{
			Feature:          features.FeatureNames[f],
			PermutationScore: baseline.Accuracy - report.Accuracy,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PermutationScore > out[j].PermutationScore
	})
	return out
}
