package ml

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam defaults, matching the usual Keras settings.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adam keeps first and second moment estimates for every parameter.
type adam struct {
	lr   float64
	step int
	mW   []*mat.Dense
	vW   []*mat.Dense
	mB   []*mat.VecDense
	vB   []*mat.VecDense
}

func newAdam(lr float64, n *network) *adam {
	a := &adam{lr: lr}
	for l, w := range n.weights {
		r, c := w.Dims()
		a.mW = append(a.mW, mat.NewDense(r, c, nil))
		a.vW = append(a.vW, mat.NewDense(r, c, nil))
		size := n.biases[l].Len()
		a.mB = append(a.mB, mat.NewVecDense(size, nil))
		a.vB = append(a.vB, mat.NewVecDense(size, nil))
	}
	return a
}

// apply performs one update of the network parameters in place.
func (a *adam) apply(n *network, dW []*mat.Dense, dB []*mat.VecDense) {
	a.step++
	t := float64(a.step)
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for l := range n.weights {
		w, m, v, g := n.weights[l], a.mW[l], a.vW[l], dW[l]
		r, c := w.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				gij := g.At(i, j)
				mij := adamBeta1*m.At(i, j) + (1-adamBeta1)*gij
				vij := adamBeta2*v.At(i, j) + (1-adamBeta2)*gij*gij
				m.Set(i, j, mij)
				v.Set(i, j, vij)
				w.Set(i, j, w.At(i, j)-lrT*mij/(math.Sqrt(vij)+adamEpsilon))
			}
		}

		b, mb, vb, gb := n.biases[l], a.mB[l], a.vB[l], dB[l]
		for j := 0; j < b.Len(); j++ {
			gj := gb.AtVec(j)
			mj := adamBeta1*mb.AtVec(j) + (1-adamBeta1)*gj
			vj := adamBeta2*vb.AtVec(j) + (1-adamBeta2)*gj*gj
			mb.SetVec(j, mj)
			vb.SetVec(j, vj)
			b.SetVec(j, b.AtVec(j)-lrT*mj/(math.Sqrt(vj)+adamEpsilon))
		}
	}
}
