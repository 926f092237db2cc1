// ffn.go - Gated-Dconv Feed-Forward (GDFN)
package priorformer

import (
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// FeedForward expandiert per 1x1 auf zwei Zweige, filtert depthwise und
// gatet den einen Zweig mit der GELU des anderen
type FeedForward struct {
	In        *nn.Conv2D `st:"project_in"`
	Depthwise *nn.Conv2D `st:"dwconv"`
	Out       *nn.Conv2D `st:"project_out"`

	Modulation *Modulation
}

func newFeedForward(ctx ml.Context, o Options, dim, group int) *FeedForward {
	hidden := int(float64(dim) * o.FFNExpand)

	f := &FeedForward{
		In:        nn.NewConv2D(ctx, dim, hidden*2, 1, 1, o.Bias),
		Depthwise: nn.NewConv2D(ctx, hidden*2, hidden*2, 3, hidden*2, o.Bias),
		Out:       nn.NewConv2D(ctx, hidden, dim, 1, 1, o.Bias),
	}
	if group == 1 {
		f.Modulation = newModulation(ctx, o.priorChannels(), dim)
	}
	return f
}

func (f *FeedForward) Forward(ctx ml.Context, x, prior ml.Tensor) ml.Tensor {
	if f.Modulation != nil && prior != nil {
		x = f.Modulation.Forward(ctx, x, prior)
	}

	x = f.In.Forward(ctx, x, 1, 0, 1, 1)
	x = f.Depthwise.Forward(ctx, x, 1, 1, 1, x.Dim(1))

	parts := x.Chunk(ctx, 1, 2)
	x = parts[0].GELU(ctx).Mul(ctx, parts[1])

	return f.Out.Forward(ctx, x, 1, 0, 1, 1)
}
