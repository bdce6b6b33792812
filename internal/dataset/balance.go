// Package dataset prepares labeled avalanche records for training: CSV
// loading, season filtering, encoding and class balancing.
package dataset

import (
	"fmt"
	"math/rand"

	"avalanche-predictor/internal/features"
)

// InsufficientDataError is returned when one of the label partitions is empty.
type InsufficientDataError struct {
	Positives int
	Negatives int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data to balance: %d avalanche rows, %d non-avalanche rows", e.Positives, e.Negatives)
}

// Balance keeps every row of the minority class and draws the same number of
// rows, without replacement, from the majority class. The result is shuffled
// with rng, so its order carries no meaning.
func Balance(samples []features.Sample, rng *rand.Rand) ([]features.Sample, error) {
	var pos, neg []features.Sample
	for _, s := range samples {
		if s.Avalanche {
			pos = append(pos, s)
		} else {
			neg = append(neg, s)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return nil, &InsufficientDataError{Positives: len(pos), Negatives: len(neg)}
	}

	minority, majority := pos, neg
	if len(neg) < len(pos) {
		minority, majority = neg, pos
	}
	n := len(minority)

	out := make([]features.Sample, 0, 2*n)
	out = append(out, minority...)
	for _, idx := range rng.Perm(len(majority))[:n] {
		out = append(out, majority[idx])
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// CountLabels returns the number of avalanche and non-avalanche samples.
func CountLabels(samples []features.Sample) (positives, negatives int) {
	for _, s := range samples {
		if s.Avalanche {
			positives++
		} else {
			negatives++
		}
	}
	return positives, negatives
}
