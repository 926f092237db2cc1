// film.go - Prior-Konditionierung per Feature-Modulation
package priorformer

import (
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// Modulation skaliert und verschiebt die Kanaele einer Feature-Map mit
// zwei Projektionen des Prior-Vektors (x*k1 + k2). Existiert nur in der
// innersten Ebene (group == 1); dort ist der Prior ein flacher Vektor.
type Modulation struct {
	Scale *nn.Linear `st:"ln1"`
	Shift *nn.Linear `st:"ln2"`
}

func newModulation(ctx ml.Context, priorDim, dim int) *Modulation {
	return &Modulation{
		Scale: nn.NewLinear(ctx, priorDim, dim, true),
		Shift: nn.NewLinear(ctx, priorDim, dim, true),
	}
}

// Forward moduliert x (b, dim, h, w) mit prior (b, priorDim)
func (m *Modulation) Forward(ctx ml.Context, x, prior ml.Tensor) ml.Tensor {
	b := x.Dim(0)
	dim := x.Dim(1)

	k1 := m.Scale.Forward(ctx, prior).Reshape(ctx, b, dim, 1, 1)
	k2 := m.Shift.Forward(ctx, prior).Reshape(ctx, b, dim, 1, 1)

	return x.Mul(ctx, k1).Add(ctx, k2)
}
