package ml

import "math"

// EarlyStopping stops training once validation loss has not improved for
// Patience consecutive epochs. Only a strictly lower loss counts as an
// improvement.
type EarlyStopping struct {
	Patience int

	best      float64
	bestEpoch int
	wait      int
}

// NewEarlyStopping returns a policy with the given patience.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{Patience: patience, best: math.Inf(1), bestEpoch: -1}
}

// Observe records the validation loss of an epoch. It reports whether this
// epoch is the new best and whether training should stop.
func (s *EarlyStopping) Observe(epoch int, loss float64) (improved, stop bool) {
	if loss < s.best {
		s.best = loss
		s.bestEpoch = epoch
		s.wait = 0
		return true, false
	}
	s.wait++
	return false, s.wait >= s.Patience
}

// Best returns the lowest loss seen and the epoch it was seen in. The epoch
// is -1 before the first observation.
func (s *EarlyStopping) Best() (float64, int) {
	return s.best, s.bestEpoch
}
