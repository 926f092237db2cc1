// convolution.go - 2D-Faltungs-Layer
package nn

import (
	"math"

	"github.com/priorml/priorformer/ml"
)

// Conv2D ist eine 2D-Faltung mit quadratischem Kernel.
// Das Gewicht liegt als (cOut, cIn/groups, k, k) im Speicher.
type Conv2D struct {
	Weight ml.Tensor `st:"weight"`
	Bias   ml.Tensor `st:"bias"`
}

// NewConv2D erstellt eine zufaellig initialisierte Faltung
func NewConv2D(ctx ml.Context, in, out, kernel, groups int, bias bool) *Conv2D {
	fanIn := (in / groups) * kernel * kernel

	c := &Conv2D{
		Weight: ctx.RandN(float32(1/math.Sqrt(float64(fanIn))), out, in/groups, kernel, kernel),
	}
	if bias {
		c.Bias = ctx.Zeros(ml.DTypeF32, out)
	}
	return c
}

// Forward berechnet die Faltung. Stride, Padding und Dilation gelten
// symmetrisch fuer beide Raum-Achsen.
func (m *Conv2D) Forward(ctx ml.Context, t ml.Tensor, stride, padding, dilation, groups int) ml.Tensor {
	t = t.Conv2D(ctx, m.Weight, stride, stride, padding, padding, dilation, dilation, groups)
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias.Reshape(ctx, m.Bias.Dim(0), 1, 1))
	}

	return t
}
