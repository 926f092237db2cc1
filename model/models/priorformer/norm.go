// norm.go - LayerNorm-Varianten der Restormer-Bloecke
package priorformer

import (
	"github.com/priorml/priorformer/ml"
)

// LayerNorm normalisiert die Kanal-Achse in Token-Anordnung (b, n, c).
// Die bias-freie Variante teilt nur durch die Standardabweichung, ohne
// den Mittelwert zu subtrahieren.
type LayerNorm struct {
	Weight ml.Tensor `st:"weight"`
	Bias   ml.Tensor `st:"bias"`

	biasFree bool
}

func newLayerNorm(ctx ml.Context, dim int, biasFree bool) *LayerNorm {
	n := &LayerNorm{
		Weight:   ctx.Ones(ml.DTypeF32, dim),
		biasFree: biasFree,
	}
	if !biasFree {
		n.Bias = ctx.Zeros(ml.DTypeF32, dim)
	}
	return n
}

// Forward normalisiert Token-Layout (..., c)
func (n *LayerNorm) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	if n.biasFree {
		return x.VarianceNorm(ctx, n.Weight, normEps)
	}
	return x.LayerNorm(ctx, n.Weight, n.Bias, normEps)
}

// ForwardSpatial normalisiert (b, c, h, w) ueber die Kanal-Achse
func (n *LayerNorm) ForwardSpatial(ctx ml.Context, x ml.Tensor) ml.Tensor {
	h, w := x.Dim(2), x.Dim(3)
	return toSpatial(ctx, n.Forward(ctx, toTokens(ctx, x)), h, w)
}

// toTokens ordnet (b, c, h, w) zu (b, h*w, c) um
func toTokens(ctx ml.Context, x ml.Tensor) ml.Tensor {
	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	return x.Reshape(ctx, b, c, h*w).Permute(ctx, 0, 2, 1).Contiguous(ctx)
}

// toSpatial ist die Umkehrung von toTokens
func toSpatial(ctx ml.Context, x ml.Tensor, h, w int) ml.Tensor {
	b, c := x.Dim(0), x.Dim(2)
	return x.Permute(ctx, 0, 2, 1).Contiguous(ctx).Reshape(ctx, b, c, h, w)
}
