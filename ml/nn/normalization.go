// normalization.go - Normalisierungs-Layer
package nn

import (
	"github.com/priorml/priorformer/ml"
)

// LayerNorm normalisiert die letzte Dimension mit gelerntem weight/bias
type LayerNorm struct {
	Weight ml.Tensor `st:"weight"`
	Bias   ml.Tensor `st:"bias"`
}

// NewLayerNorm erstellt eine LayerNorm mit weight=1, bias=0
func NewLayerNorm(ctx ml.Context, dim int) *LayerNorm {
	return &LayerNorm{
		Weight: ctx.Ones(ml.DTypeF32, dim),
		Bias:   ctx.Zeros(ml.DTypeF32, dim),
	}
}

// Forward normalisiert die letzte Dimension
func (m *LayerNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}
