// linear.go - Linearer Layer (vollverbundene Projektion)
package nn

import (
	"math"

	"github.com/priorml/priorformer/ml"
)

// Linear projiziert die letzte Dimension von in auf out Merkmale.
// Das Gewicht liegt in Torch-Konvention als (out, in) im Speicher.
type Linear struct {
	Weight ml.Tensor `st:"weight"`
	Bias   ml.Tensor `st:"bias"`
}

// NewLinear erstellt einen zufaellig initialisierten Linear-Layer
func NewLinear(ctx ml.Context, in, out int, bias bool) *Linear {
	l := &Linear{
		Weight: ctx.RandN(float32(1/math.Sqrt(float64(in))), out, in),
	}
	if bias {
		l.Bias = ctx.Zeros(ml.DTypeF32, out)
	}
	return l
}

// Forward berechnet x @ W^T + b ueber die letzte Dimension
func (m *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	t = t.Matmul(ctx, m.Weight.Permute(ctx, 1, 0).Contiguous(ctx))
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}

	return t
}
