// attention.go - Multi-Head Self-Attention des MAE-Encoders
package mae

import (
	"math"

	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// Attention ist die Standard-Attention auf Token-Sequenzen (b, n, c).
// Die Projektionen liegen getrennt vor; fusionierte qkv-Gewichte werden
// beim Import aufgeteilt.
type Attention struct {
	Query  *nn.Linear `st:"q"`
	Key    *nn.Linear `st:"k"`
	Value  *nn.Linear `st:"v"`
	Output *nn.Linear `st:"proj"`

	heads int
}

func newAttention(ctx ml.Context, dim, heads int) *Attention {
	return &Attention{
		Query:  nn.NewLinear(ctx, dim, dim, true),
		Key:    nn.NewLinear(ctx, dim, dim, true),
		Value:  nn.NewLinear(ctx, dim, dim, true),
		Output: nn.NewLinear(ctx, dim, dim, true),
		heads:  heads,
	}
}

// Forward berechnet die skalierte Dot-Product-Attention
func (a *Attention) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	b, n, c := x.Dim(0), x.Dim(1), x.Dim(2)
	headDim := c / a.heads

	split := func(t ml.Tensor) ml.Tensor {
		return t.Reshape(ctx, b, n, a.heads, headDim).Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
	}

	q := split(a.Query.Forward(ctx, x))
	k := split(a.Key.Forward(ctx, x))
	v := split(a.Value.Forward(ctx, x))

	attn := q.Matmul(ctx, k.Permute(ctx, 0, 1, 3, 2))
	attn = attn.Scale(ctx, 1/math.Sqrt(float64(headDim))).Softmax(ctx)

	out := attn.Matmul(ctx, v)
	out = out.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx).Reshape(ctx, b, n, c)

	return a.Output.Forward(ctx, out)
}
