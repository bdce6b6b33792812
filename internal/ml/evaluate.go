package ml

import (
	"avalanche-predictor/internal/features"
)

// Report summarizes classifier quality on a labeled set.
type Report struct {
	Total          int     `json:"total"`
	Correct        int     `json:"correct"`
	Accuracy       float64 `json:"accuracy"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	// MeanScoreAvalanche is the mean Avalanche score over rows where an
	// avalanche happened; MeanScoreNoAvalanche over rows where none did.
	MeanScoreAvalanche   float64 `json:"mean_score_avalanche"`
	MeanScoreNoAvalanche float64 `json:"mean_score_no_avalanche"`
}

// Evaluate compares predictions with the observed outcomes. Rows without a
// label are skipped.
func Evaluate(predictions []Prediction, records []features.RawRecord) Report {
	var truth []bool
	var preds []Prediction
	for i, r := range records {
		if i >= len(predictions) || r.Avalanche == nil {
			continue
		}
		truth = append(truth, *r.Avalanche)
		preds = append(preds, predictions[i])
	}
	return buildReport(preds, truth)
}

func buildReport(preds []Prediction, truth []bool) Report {
	var r Report
	var sumPos, sumNeg float64
	var nPos, nNeg int
	for i, p := range preds {
		actual := truth[i]
		predicted := p.Label == Avalanche
		r.Total++
		switch {
		case actual && predicted:
			r.TruePositives++
		case actual && !predicted:
			r.FalseNegatives++
		case !actual && predicted:
			r.FalsePositives++
		default:
			r.TrueNegatives++
		}
		if actual {
			sumPos += p.Scores[0]
			nPos++
		} else {
			sumNeg += p.Scores[0]
			nNeg++
		}
	}
	r.Correct = r.TruePositives + r.TrueNegatives
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
	if nPos > 0 {
		r.MeanScoreAvalanche = sumPos / float64(nPos)
	}
	if nNeg > 0 {
		r.MeanScoreNoAvalanche = sumNeg / float64(nNeg)
	}
	return r
}

// evaluateSamples runs the network over already scaled samples and returns
// the mean loss and the report.
func evaluateSamples(net *network, samples []features.Sample) (float64, Report) {
	if len(samples) == 0 {
		return 0, Report{}
	}
	x, y := sampleMatrices(samples)
	probs := net.predict(x)
	loss := crossEntropy(probs, y)

	preds := make([]Prediction, len(samples))
	truth := make([]bool, len(samples))
	for i, s := range samples {
		preds[i] = newPrediction(probs.At(i, 0), probs.At(i, 1))
		truth[i] = s.Avalanche
	}
	return loss, buildReport(preds, truth)
}
