// sample.go - Aufloesungs-Wechsel per Pixel-Shuffle
package priorformer

import (
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// Downsample halbiert die Aufloesung: 3x3-Faltung auf C/2 Kanaele,
// dann wandern 2x2-Bloecke in die Kanal-Achse -> (b, 2C, h/2, w/2)
type Downsample struct {
	Conv *nn.Conv2D `st:"conv"`
}

func newDownsample(ctx ml.Context, dim int) *Downsample {
	return &Downsample{Conv: nn.NewConv2D(ctx, dim, dim/2, 3, 1, false)}
}

func (d *Downsample) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	return d.Conv.Forward(ctx, x, 1, 1, 1, 1).SpaceToDepth(ctx, 2)
}

// Upsample verdoppelt die Aufloesung: 3x3-Faltung auf 2C Kanaele,
// dann Kanal-Bloecke zurueck in den Raum -> (b, C/2, 2h, 2w)
type Upsample struct {
	Conv *nn.Conv2D `st:"conv"`
}

func newUpsample(ctx ml.Context, dim int) *Upsample {
	return &Upsample{Conv: nn.NewConv2D(ctx, dim, dim*2, 3, 1, false)}
}

func (u *Upsample) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	return u.Conv.Forward(ctx, x, 1, 1, 1, 1).DepthToSpace(ctx, 2)
}
