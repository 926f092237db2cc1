// mlp.go - Feed-Forward-Teil der MAE-Bloecke
package mae

import (
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// MLP ist das zweischichtige Feed-Forward-Netz mit GELU
type MLP struct {
	Up   *nn.Linear `st:"fc1"`
	Down *nn.Linear `st:"fc2"`
}

func newMLP(ctx ml.Context, dim, hidden int) *MLP {
	return &MLP{
		Up:   nn.NewLinear(ctx, dim, hidden, true),
		Down: nn.NewLinear(ctx, hidden, dim, true),
	}
}

func (m *MLP) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	return m.Down.Forward(ctx, m.Up.Forward(ctx, x).GELU(ctx))
}
