package ml

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"avalanche-predictor/internal/features"
)

// Label is the predicted class.
type Label int

const (
	NoAvalanche Label = iota
	Avalanche
)

func (l Label) String() string {
	if l == Avalanche {
		return "Avalanche"
	}
	return "NoAvalanche"
}

func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Avalanche":
		*l = Avalanche
	case "NoAvalanche":
		*l = NoAvalanche
	default:
		return fmt.Errorf("unknown label %q", s)
	}
	return nil
}

// DecideLabel picks Avalanche only when its score is strictly greater; a tie
// goes to NoAvalanche.
func DecideLabel(avalanche, noAvalanche float64) Label {
	if avalanche > noAvalanche {
		return Avalanche
	}
	return NoAvalanche
}

// Prediction is the classifier output for one record.
type Prediction struct {
	Label Label `json:"label"`
	// Scores are the softmax outputs: Avalanche first, NoAvalanche second.
	Scores [2]float64 `json:"scores"`
	// Clamped names the features whose values fell outside the training range
	// and were clamped before scoring.
	Clamped []string `json:"clamped,omitempty"`
}

func newPrediction(avalanche, noAvalanche float64) Prediction {
	return Prediction{
		Label:  DecideLabel(avalanche, noAvalanche),
		Scores: [2]float64{avalanche, noAvalanche},
	}
}

// RowResult is the outcome for one record of a per-row batch.
type RowResult struct {
	Index      int
	Prediction Prediction
	Err        error
}

// Predict encodes each record, scales it with the artifact's stored scaler and
// scores it. The first record that fails to encode fails the whole batch.
func Predict(artifact *ModelArtifact, records []features.RawRecord) ([]Prediction, error) {
	if !artifact.Loaded() {
		return nil, &ModelNotLoadedError{}
	}

	vectors := make([]features.FeatureVector, len(records))
	clamped := make([][]string, len(records))
	for i, r := range records {
		v, err := features.Encode(r)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.Key(), err)
		}
		vectors[i], clamped[i] = artifact.Scaler.Apply(v)
	}

	preds := artifact.score(vectors)
	for i := range preds {
		preds[i].Clamped = clamped[i]
	}
	return preds, nil
}

// PredictEach scores records independently. Records that fail to encode get
// an error in their result and do not affect the others.
func PredictEach(artifact *ModelArtifact, records []features.RawRecord) []RowResult {
	results := make([]RowResult, len(records))
	if !artifact.Loaded() {
		for i := range results {
			results[i] = RowResult{Index: i, Err: &ModelNotLoadedError{}}
		}
		return results
	}

	var vectors []features.FeatureVector
	var clamped [][]string
	var rows []int
	for i, r := range records {
		results[i].Index = i
		v, err := features.Encode(r)
		if err != nil {
			results[i].Err = err
			continue
		}
		scaled, c := artifact.Scaler.Apply(v)
		vectors = append(vectors, scaled)
		clamped = append(clamped, c)
		rows = append(rows, i)
	}

	for k, p := range artifact.score(vectors) {
		p.Clamped = clamped[k]
		results[rows[k]].Prediction = p
	}
	return results
}

// score runs scaled vectors through the network in one batch.
func (a *ModelArtifact) score(vectors []features.FeatureVector) []Prediction {
	if len(vectors) == 0 {
		return []Prediction{}
	}
	x := mat.NewDense(len(vectors), features.NumFeatures, nil)
	for i, v := range vectors {
		x.SetRow(i, v[:])
	}
	probs := a.net.predict(x)

	preds := make([]Prediction, len(vectors))
	for i := range vectors {
		preds[i] = newPrediction(probs.At(i, 0), probs.At(i, 1))
	}
	return preds
}
