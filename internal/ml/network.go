package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"avalanche-predictor/internal/features"
)

// NumClasses is the width of the softmax output: index 0 is Avalanche,
// index 1 is NoAvalanche.
const NumClasses = 2

// probEpsilon bounds probabilities away from 0 and 1 inside the loss.
const probEpsilon = 1e-7

// LayerParams is the serialized form of one dense layer. Weights are stored
// row-major with one row per input.
type LayerParams struct {
	Inputs  int       `json:"inputs"`
	Outputs int       `json:"outputs"`
	Weights []float64 `json:"weights"`
	Biases  []float64 `json:"biases"`
}

// network is a fully connected perceptron with ReLU hidden layers and a
// softmax output layer.
type network struct {
	weights []*mat.Dense
	biases  []*mat.VecDense
}

// layerSizes returns input, hidden and output widths for the classifier.
func layerSizes(hidden int) []int {
	return []int{features.NumFeatures, hidden, hidden, hidden, NumClasses}
}

// newNetwork initializes weights with Glorot uniform draws and biases at zero.
func newNetwork(sizes []int, rng *rand.Rand) *network {
	n := &network{}
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(in+out))
		data := make([]float64, in*out)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * limit
		}
		n.weights = append(n.weights, mat.NewDense(in, out, data))
		n.biases = append(n.biases, mat.NewVecDense(out, nil))
	}
	return n
}

func networkFromParams(params []LayerParams) (*network, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("network has no layers")
	}
	n := &network{}
	prev := features.NumFeatures
	for i, p := range params {
		if p.Inputs != prev {
			return nil, fmt.Errorf("layer %d takes %d inputs, previous layer gives %d", i, p.Inputs, prev)
		}
		if p.Outputs <= 0 {
			return nil, fmt.Errorf("layer %d has %d outputs", i, p.Outputs)
		}
		if len(p.Weights) != p.Inputs*p.Outputs || len(p.Biases) != p.Outputs {
			return nil, fmt.Errorf("layer %d has %d weights and %d biases for shape %dx%d",
				i, len(p.Weights), len(p.Biases), p.Inputs, p.Outputs)
		}
		if !allFinite(p.Weights) {
			return nil, fmt.Errorf("layer %d has a non-finite weight", i)
		}
		if !allFinite(p.Biases) {
			return nil, fmt.Errorf("layer %d has a non-finite bias", i)
		}
		w := append([]float64(nil), p.Weights...)
		b := append([]float64(nil), p.Biases...)
		n.weights = append(n.weights, mat.NewDense(p.Inputs, p.Outputs, w))
		n.biases = append(n.biases, mat.NewVecDense(p.Outputs, b))
		prev = p.Outputs
	}
	if prev != NumClasses {
		return nil, fmt.Errorf("output layer has %d units, want %d", prev, NumClasses)
	}
	return n, nil
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (n *network) params() []LayerParams {
	out := make([]LayerParams, len(n.weights))
	for l, w := range n.weights {
		rows, cols := w.Dims()
		p := LayerParams{
			Inputs:  rows,
			Outputs: cols,
			Weights: make([]float64, 0, rows*cols),
			Biases:  make([]float64, cols),
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				p.Weights = append(p.Weights, w.At(i, j))
			}
		}
		for j := 0; j < cols; j++ {
			p.Biases[j] = n.biases[l].AtVec(j)
		}
		out[l] = p
	}
	return out
}

func (n *network) clone() *network {
	c := &network{}
	for l := range n.weights {
		c.weights = append(c.weights, mat.DenseCopyOf(n.weights[l]))
		c.biases = append(c.biases, mat.VecDenseCopyOf(n.biases[l]))
	}
	return c
}

// forward returns the activations of every layer, input first, and the
// pre-activation values of every layer after the input.
func (n *network) forward(x *mat.Dense) (acts, pre []*mat.Dense) {
	acts = []*mat.Dense{x}
	last := len(n.weights) - 1
	for l, w := range n.weights {
		var z mat.Dense
		z.Mul(acts[l], w)
		b := n.biases[l]
		z.Apply(func(_, j int, v float64) float64 { return v + b.AtVec(j) }, &z)
		pre = append(pre, &z)

		var a mat.Dense
		if l == last {
			a.CloneFrom(&z)
			softmaxRows(&a)
		} else {
			a.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, &z)
		}
		acts = append(acts, &a)
	}
	return acts, pre
}

// predict returns class probabilities, one row per input row.
func (n *network) predict(x *mat.Dense) *mat.Dense {
	acts, _ := n.forward(x)
	return acts[len(acts)-1]
}

// gradients runs one forward and backward pass and returns the mean
// cross-entropy loss with the gradients of every layer.
func (n *network) gradients(x, y *mat.Dense) (float64, []*mat.Dense, []*mat.VecDense) {
	acts, pre := n.forward(x)
	probs := acts[len(acts)-1]
	loss := crossEntropy(probs, y)

	rows, _ := x.Dims()
	dW := make([]*mat.Dense, len(n.weights))
	dB := make([]*mat.VecDense, len(n.biases))

	// Softmax followed by cross-entropy has gradient (p - y) / batch.
	delta := new(mat.Dense)
	delta.Sub(probs, y)
	delta.Scale(1/float64(rows), delta)

	for l := len(n.weights) - 1; l >= 0; l-- {
		var gw mat.Dense
		gw.Mul(acts[l].T(), delta)
		dW[l] = &gw

		_, cols := delta.Dims()
		gb := mat.NewVecDense(cols, nil)
		for j := 0; j < cols; j++ {
			var sum float64
			for i := 0; i < rows; i++ {
				sum += delta.At(i, j)
			}
			gb.SetVec(j, sum)
		}
		dB[l] = gb

		if l == 0 {
			break
		}
		next := new(mat.Dense)
		next.Mul(delta, n.weights[l].T())
		z := pre[l-1]
		next.Apply(func(i, j int, v float64) float64 {
			if z.At(i, j) <= 0 {
				return 0
			}
			return v
		}, next)
		delta = next
	}
	return loss, dW, dB
}

func softmaxRows(m *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		peak := row[0]
		for _, v := range row[1:] {
			peak = math.Max(peak, v)
		}
		var sum float64
		for j := 0; j < cols; j++ {
			row[j] = math.Exp(row[j] - peak)
			sum += row[j]
		}
		for j := 0; j < cols; j++ {
			row[j] /= sum
		}
	}
}

// crossEntropy is the mean categorical cross-entropy of probs against one-hot y.
func crossEntropy(probs, y mat.Matrix) float64 {
	rows, cols := probs.Dims()
	if rows == 0 {
		return 0
	}
	var total float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if t := y.At(i, j); t != 0 {
				p := math.Min(math.Max(probs.At(i, j), probEpsilon), 1-probEpsilon)
				total -= t * math.Log(p)
			}
		}
	}
	return total / float64(rows)
}

// sampleMatrices packs samples into an input matrix and a one-hot label matrix.
func sampleMatrices(samples []features.Sample) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(len(samples), features.NumFeatures, nil)
	y := mat.NewDense(len(samples), NumClasses, nil)
	for i, s := range samples {
		x.SetRow(i, s.Features[:])
		label := s.Label()
		y.SetRow(i, label[:])
	}
	return x, y
}
