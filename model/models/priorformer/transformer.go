// transformer.go - Transformer-Block und Stufe
package priorformer

import (
	"github.com/priorml/priorformer/ml"
)

// TransformerBlock ist ein Restormer-Block: MDTA-Attention und GDFN,
// jeweils mit Pre-Norm und Residual
type TransformerBlock struct {
	Norm1     *LayerNorm   `st:"norm1"`
	Attention *Attention   `st:"attn"`
	Norm2     *LayerNorm   `st:"norm2"`
	FFN       *FeedForward `st:"ffn"`
}

func newTransformerBlock(ctx ml.Context, o Options, dim, heads, group int) *TransformerBlock {
	return &TransformerBlock{
		Norm1:     newLayerNorm(ctx, dim, o.BiasFree),
		Attention: newAttention(ctx, o, dim, heads, group),
		Norm2:     newLayerNorm(ctx, dim, o.BiasFree),
		FFN:       newFeedForward(ctx, o, dim, group),
	}
}

func (t *TransformerBlock) Forward(ctx ml.Context, x, prior ml.Tensor) ml.Tensor {
	x = x.Add(ctx, t.Attention.Forward(ctx, t.Norm1.ForwardSpatial(ctx, x), prior))
	x = x.Add(ctx, t.FFN.Forward(ctx, t.Norm2.ForwardSpatial(ctx, x), prior))
	return x
}

// Stage ist eine Folge von Bloecken einer Aufloesungs-Ebene. Stufen mit
// Gruppen-Prior (group > 1) integrieren ihn einmal per HIM und loeschen
// ihn dann; in der innersten Ebene (group == 1) konditioniert der Prior
// stattdessen jeden Block per Modulation.
type Stage struct {
	Blocks []*TransformerBlock `st:"blocks"`
	HIM    *HIM                `st:"him"`
}

func newStage(ctx ml.Context, o Options, dim, heads, blocks, group int) *Stage {
	s := &Stage{Blocks: make([]*TransformerBlock, blocks)}
	for i := range s.Blocks {
		s.Blocks[i] = newTransformerBlock(ctx, o, dim, heads, group)
	}
	if group > 1 {
		s.HIM = newHIM(ctx, o, dim, heads)
	}
	return s
}

func (s *Stage) Forward(ctx ml.Context, x, prior ml.Tensor) ml.Tensor {
	if prior != nil && s.HIM != nil {
		x = s.HIM.Forward(ctx, x, prior)
		prior = nil
	}

	for _, block := range s.Blocks {
		x = block.Forward(ctx, x, prior)
	}

	return x
}
