// prior.go - Prior-Verdichtung und MAE-Latent-Adapter
package priorformer

import (
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// PriorProjection verdichtet die Token-Achse des Priors (erst ueber die
// transponierte Token-Achse, dann ueber die Kanaele). Zwei Stufen bauen
// daraus die Multi-Skalen-Prioren: group^2 -> group^2/4 -> 1 Token.
type PriorProjection struct {
	Tokens   *nn.Linear `st:"tokens"`
	Channels *nn.Linear `st:"channels"`
}

func newPriorProjection(ctx ml.Context, inTokens, outTokens, channels int) *PriorProjection {
	return &PriorProjection{
		Tokens:   nn.NewLinear(ctx, inTokens, outTokens, true),
		Channels: nn.NewLinear(ctx, channels, channels, true),
	}
}

// Forward verdichtet prior (b, n, c) zu (b, n', c)
func (p *PriorProjection) Forward(ctx ml.Context, prior ml.Tensor) ml.Tensor {
	x := prior.Permute(ctx, 0, 2, 1).Contiguous(ctx)
	x = p.Tokens.Forward(ctx, x)
	x = x.Permute(ctx, 0, 2, 1).Contiguous(ctx)
	return p.Channels.Forward(ctx, x)
}

// LatentAdapter formt die MAE-Token-Ausgabe (b, tokens, width) in die
// Eingabe-Feature-Map der innersten Stufe (b, 8*dim, 2g, 2g) um
type LatentAdapter struct {
	Tokens *nn.Linear `st:"tokens"`
	Expand *nn.Conv2D `st:"expand"`
	Conv   *nn.Conv2D `st:"conv"`

	grid int
}

func newLatentAdapter(ctx ml.Context, maeTokens, maeWidth, latentDim, grid int) *LatentAdapter {
	return &LatentAdapter{
		Tokens: nn.NewLinear(ctx, maeTokens, grid*grid, true),
		Expand: nn.NewConv2D(ctx, maeWidth, latentDim, 1, 1, true),
		Conv:   nn.NewConv2D(ctx, latentDim, latentDim, 3, 1, true),
		grid:   grid,
	}
}

func (a *LatentAdapter) Forward(ctx ml.Context, maeOut ml.Tensor) ml.Tensor {
	b, width := maeOut.Dim(0), maeOut.Dim(2)

	// (b, tokens, width) -> (b, width, g, g)
	x := maeOut.Permute(ctx, 0, 2, 1).Contiguous(ctx)
	x = a.Tokens.Forward(ctx, x)
	x = x.Reshape(ctx, b, width, a.grid, a.grid)

	x = a.Expand.Forward(ctx, x, 1, 0, 1, 1)
	x = a.Conv.Forward(ctx, x, 1, 1, 1, 1)

	return x.ResizeBilinear(ctx, 2*a.grid, 2*a.grid)
}
