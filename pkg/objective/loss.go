package objective

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// NeutralValue marks a target whose truth is unknown.
	NeutralValue = 0.5
	// Epsilon bounds sigmoid outputs away from 0 and 1 before taking logs.
	Epsilon = 1e-44
)

// IgnoreWeight is the loss multiplier for target t: (t-0.5)²·4.
// It is 0 at the neutral value and 1 at the labels 0 and 1.
func IgnoreWeight(t float64) float64 {
	d := t - NeutralValue
	return d * d * 4
}

// WeightedBCE is binary cross entropy on sigmoid activated scores where every
// entry is scaled by IgnoreWeight of its target, averaged over all entries.
type WeightedBCE struct {
	PosWeight float64
	Epsilon   float64
}

// DefaultLoss returns the loss with positive weight 1 and the default epsilon.
func DefaultLoss() WeightedBCE {
	return WeightedBCE{PosWeight: 1, Epsilon: Epsilon}
}

// Compute returns the mean weighted loss and its gradient with respect to
// scores. Log terms are evaluated in log-sigmoid form and floored at
// log(Epsilon), which equals clamping the probability into [ε, 1-ε] but stays
// finite for saturated scores; the floored side contributes no gradient.
func (l WeightedBCE) Compute(scores, targets *mat.Dense) (float64, *mat.Dense, error) {
	if scores == nil || targets == nil || targets.IsEmpty() {
		return 0, nil, ErrEmptyBatch
	}
	r, c := targets.Dims()
	sr, sc := scores.Dims()
	if r != sr || c != sc {
		return 0, nil, fmt.Errorf("%w: scores %dx%d, targets %dx%d", ErrShapeMismatch, sr, sc, r, c)
	}

	eps := l.Epsilon
	if eps <= 0 {
		eps = Epsilon
	}
	floor := math.Log(eps)
	n := float64(r * c)

	grad := mat.NewDense(r, c, nil)
	var sum float64
	for i := range r {
		zs := scores.RawRowView(i)
		ts := targets.RawRowView(i)
		gs := grad.RawRowView(i)
		for j, z := range zs {
			t := ts[j]
			w := IgnoreWeight(t)
			if w == 0 {
				continue
			}

			p := sigmoid(z)
			logP, dLogP := -softplus(-z), 1-p
			if logP < floor {
				logP, dLogP = floor, 0
			}
			log1mP, dLog1mP := -softplus(z), -p
			if log1mP < floor {
				log1mP, dLog1mP = floor, 0
			}

			bce := -(l.PosWeight*t*logP + (1-t)*log1mP)
			sum += w * bce
			gs[j] = -w * (l.PosWeight*t*dLogP + (1-t)*dLog1mP) / n
		}
	}
	return sum / n, grad, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1+exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
