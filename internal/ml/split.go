package ml

import (
	"fmt"
	"math/rand"

	"avalanche-predictor/internal/features"
)

// Partitions holds the three holdout sets used by the trainer.
type Partitions struct {
	Train      []features.Sample
	Validation []features.Sample
	Test       []features.Sample
}

// Split shuffles samples with rng and carves off the test set first, then the
// validation set. Both fractions are of the full dataset, so 0.1 and 0.1
// yield an 80/10/10 split.
func Split(samples []features.Sample, validation, test float64, rng *rand.Rand) (Partitions, error) {
	if validation < 0 || test < 0 || validation+test >= 1 {
		return Partitions{}, fmt.Errorf("invalid split fractions: validation %v, test %v", validation, test)
	}

	shuffled := make([]features.Sample, len(samples))
	for i, idx := range rng.Perm(len(samples)) {
		shuffled[i] = samples[idx]
	}

	nTest := int(float64(len(samples)) * test)
	nVal := int(float64(len(samples)) * validation)

	return Partitions{
		Test:       shuffled[:nTest],
		Validation: shuffled[nTest : nTest+nVal],
		Train:      shuffled[nTest+nVal:],
	}, nil
}
