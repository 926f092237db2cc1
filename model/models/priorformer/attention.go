// attention.go - Transponierte Self-Attention (MDTA)
//
// Die Attention laeuft ueber die Kanal-Achse statt ueber die Raum-Achse:
// q und k werden ueber die Raum-Achse L2-normalisiert, die Attention-
// Matrix hat die Groesse (c/heads)^2 und skaliert damit linear mit der
// Bildflaeche.
package priorformer

import (
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// Attention ist die MDTA-Attention mit gelernter Temperatur pro Kopf
type Attention struct {
	QKV          *nn.Conv2D `st:"qkv"`
	QKVDepthwise *nn.Conv2D `st:"qkv_dwconv"`
	Output       *nn.Conv2D `st:"project_out"`
	Temperature  ml.Tensor  `st:"temperature"`

	Modulation *Modulation

	heads int
}

func newAttention(ctx ml.Context, o Options, dim, heads, group int) *Attention {
	a := &Attention{
		QKV:          nn.NewConv2D(ctx, dim, dim*3, 1, 1, o.Bias),
		QKVDepthwise: nn.NewConv2D(ctx, dim*3, dim*3, 3, dim*3, o.Bias),
		Output:       nn.NewConv2D(ctx, dim, dim, 1, 1, o.Bias),
		Temperature:  ctx.Ones(ml.DTypeF32, heads, 1, 1),
		heads:        heads,
	}
	if group == 1 {
		a.Modulation = newModulation(ctx, o.priorChannels(), dim)
	}
	return a
}

// Forward berechnet die Attention auf x (b, c, h, w). prior konditioniert
// nur, wenn die Modulation existiert (innerste Ebene).
func (a *Attention) Forward(ctx ml.Context, x, prior ml.Tensor) ml.Tensor {
	if a.Modulation != nil && prior != nil {
		x = a.Modulation.Forward(ctx, x, prior)
	}

	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	headDim := c / a.heads

	qkv := a.QKV.Forward(ctx, x, 1, 0, 1, 1)
	qkv = a.QKVDepthwise.Forward(ctx, qkv, 1, 1, 1, 3*c)
	parts := qkv.Chunk(ctx, 1, 3)

	// (b, c, h, w) -> (b, heads, c/heads, h*w)
	q := parts[0].Reshape(ctx, b, a.heads, headDim, h*w)
	k := parts[1].Reshape(ctx, b, a.heads, headDim, h*w)
	v := parts[2].Reshape(ctx, b, a.heads, headDim, h*w)

	out := a.attend(ctx, q, k, v).Reshape(ctx, b, c, h, w)

	return a.Output.Forward(ctx, out, 1, 0, 1, 1)
}

// attend ist der MDTA-Kern: q und k werden ueber die Raum-Achse
// L2-normalisiert, die Attention-Matrix lebt auf der Kanal-Achse und
// wird mit der gelernten Temperatur pro Kopf skaliert
func (a *Attention) attend(ctx ml.Context, q, k, v ml.Tensor) ml.Tensor {
	q = q.L2Norm(ctx, 1e-12)
	k = k.L2Norm(ctx, 1e-12)

	attn := q.Matmul(ctx, k.Permute(ctx, 0, 1, 3, 2))
	attn = attn.Mul(ctx, a.Temperature).Softmax(ctx)

	return attn.Matmul(ctx, v)
}
