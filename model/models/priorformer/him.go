// him.go - Hierarchisches Integrations-Modul
//
// Cross-Attention von den Bild-Tokens (Queries) auf die Prior-Tokens
// (Keys/Values). Laeuft hoechstens einmal pro Stufe; danach ist der
// Prior in die Feature-Map eingearbeitet und wird geloescht.
package priorformer

import (
	"math"

	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// HIM integriert den Prior per Multi-Head Cross-Attention
type HIM struct {
	Norm1 *LayerNorm `st:"norm1"`
	Norm2 *LayerNorm `st:"norm2"`

	Query    *nn.Linear `st:"q"`
	KeyValue *nn.Linear `st:"kv"`
	Output   *nn.Linear `st:"proj"`

	heads int
	scale float64
}

func newHIM(ctx ml.Context, o Options, dim, heads int) *HIM {
	return &HIM{
		Norm1:    newLayerNorm(ctx, dim, o.BiasFree),
		Norm2:    newLayerNorm(ctx, o.priorChannels(), o.BiasFree),
		Query:    nn.NewLinear(ctx, dim, dim, o.Bias),
		KeyValue: nn.NewLinear(ctx, o.priorChannels(), 2*dim, o.Bias),
		Output:   nn.NewLinear(ctx, dim, dim, true),
		heads:    heads,
		scale:    math.Pow(float64(dim/heads), -0.5),
	}
}

// Forward integriert prior (b, n, priorDim) in x (b, c, h, w)
func (m *HIM) Forward(ctx ml.Context, x, prior ml.Tensor) ml.Tensor {
	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	headDim := c / m.heads

	tokens := toTokens(ctx, x)

	q := m.Query.Forward(ctx, m.Norm1.Forward(ctx, tokens))
	kv := m.KeyValue.Forward(ctx, m.Norm2.Forward(ctx, prior))
	parts := kv.Chunk(ctx, 2, 2)

	split := func(t ml.Tensor) ml.Tensor {
		return t.Reshape(ctx, b, t.Dim(1), m.heads, headDim).Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
	}

	qh := split(q)
	kh := split(parts[0].Contiguous(ctx))
	vh := split(parts[1].Contiguous(ctx))

	attn := qh.Matmul(ctx, kh.Permute(ctx, 0, 1, 3, 2)).Scale(ctx, m.scale).Softmax(ctx)

	out := attn.Matmul(ctx, vh)
	out = out.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx).Reshape(ctx, b, h*w, c)
	out = m.Output.Forward(ctx, out)

	// Residual auf die unnormierten Tokens
	return toSpatial(ctx, tokens.Add(ctx, out), h, w)
}
