// Package mae - Masked-Autoencoder Vision-Encoder
//
// Pre-Norm Vision-Transformer im MAE-Stil: Patch-Einbettung per Faltung,
// gelerntes cls-Token und Positions-Embedding, Depth Bloecke aus
// Self-Attention und MLP, abschliessende LayerNorm. Es laeuft nur der
// Encoder; Maskierung und Decoder gehoeren zum Training und fehlen hier.
package mae

import (
	"fmt"

	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
)

// Block ist ein Pre-Norm Transformer-Block
type Block struct {
	Norm1     *nn.LayerNorm `st:"norm1"`
	Attention *Attention    `st:"attn"`
	Norm2     *nn.LayerNorm `st:"norm2"`
	MLP       *MLP          `st:"mlp"`
}

func newBlock(ctx ml.Context, o Options) *Block {
	return &Block{
		Norm1:     nn.NewLayerNorm(ctx, o.EmbedDim),
		Attention: newAttention(ctx, o.EmbedDim, o.Heads),
		Norm2:     nn.NewLayerNorm(ctx, o.EmbedDim),
		MLP:       newMLP(ctx, o.EmbedDim, int(float64(o.EmbedDim)*o.MLPRatio)),
	}
}

func (b *Block) Forward(ctx ml.Context, x ml.Tensor, eps float32) ml.Tensor {
	x = x.Add(ctx, b.Attention.Forward(ctx, b.Norm1.Forward(ctx, x, eps)))
	x = x.Add(ctx, b.MLP.Forward(ctx, b.Norm2.Forward(ctx, x, eps)))
	return x
}

// Encoder ist der MAE-Encoder. Die Ausgabe hat die Shape
// (b, Tokens, EmbedDim).
type Encoder struct {
	ClsToken   ml.Tensor     `st:"cls_token"`
	PosEmbed   ml.Tensor     `st:"pos_embed"`
	PatchEmbed *nn.Conv2D    `st:"patch_embed.proj"`
	Blocks     []*Block      `st:"blocks"`
	Norm       *nn.LayerNorm `st:"norm"`

	opts Options
}

// New erstellt einen zufaellig initialisierten Encoder
func New(ctx ml.Context, o Options) *Encoder {
	e := &Encoder{
		ClsToken:   ctx.RandN(0.02, 1, 1, o.EmbedDim),
		PosEmbed:   ctx.RandN(0.02, 1, o.Tokens(), o.EmbedDim),
		PatchEmbed: nn.NewConv2D(ctx, o.InChannels, o.EmbedDim, o.PatchSize, 1, true),
		Blocks:     make([]*Block, o.Depth),
		Norm:       nn.NewLayerNorm(ctx, o.EmbedDim),
		opts:       o,
	}
	for i := range e.Blocks {
		e.Blocks[i] = newBlock(ctx, o)
	}
	return e
}

// Options gibt die Geometrie des Encoders zurueck
func (e *Encoder) Options() Options {
	return e.opts
}

// Forward bettet das Bild ein und laesst alle Bloecke laufen
func (e *Encoder) Forward(ctx ml.Context, images ml.Tensor) ml.Tensor {
	o := e.opts
	if images.Dim(2) != o.ImageSize || images.Dim(3) != o.ImageSize {
		panic(fmt.Sprintf("mae: eingabe %dx%d, erwartet %dx%d",
			images.Dim(2), images.Dim(3), o.ImageSize, o.ImageSize))
	}

	b := images.Dim(0)

	// (b, c, s, s) -> (b, dim, g, g) -> (b, g*g, dim)
	x := e.PatchEmbed.Forward(ctx, images, o.PatchSize, 0, 1, 1)
	x = x.Reshape(ctx, b, o.EmbedDim, o.Grid()*o.Grid())
	x = x.Permute(ctx, 0, 2, 1).Contiguous(ctx)

	// cls-Token auf die Batch-Groesse verbreitern und voranstellen
	cls := e.ClsToken.Add(ctx, ctx.Zeros(ml.DTypeF32, b, 1, o.EmbedDim))
	x = cls.Concat(ctx, x, 1)
	x = x.Add(ctx, e.PosEmbed)

	for _, block := range e.Blocks {
		x = block.Forward(ctx, x, o.Eps)
	}

	return e.Norm.Forward(ctx, x, o.Eps)
}
