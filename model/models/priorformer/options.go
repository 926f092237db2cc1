// options.go - Konfiguration der Restaurierungs-Architektur
package priorformer

import (
	"fmt"

	"github.com/priorml/priorformer/fs"
	"github.com/priorml/priorformer/model/models/mae"
)

// Normalisierungs-Epsilon der Restormer-LayerNorms, fest verdrahtet
const normEps = 1e-5

// Options beschreibt die Architektur. Dim verdoppelt sich pro Ebene;
// EmbedDim*4 ist die Kanalbreite des Prior-Embeddings.
type Options struct {
	InChannels  int
	OutChannels int
	Dim         int
	Blocks      []int // Bloecke pro Ebene, Laenge 4
	Refinement  int
	Heads       []int // Koepfe pro Ebene, Laenge 4
	FFNExpand   float64
	Bias        bool
	BiasFree    bool // bias-freie LayerNorm-Variante
	DualPixel   bool
	EmbedDim    int
	Group       int

	MAE mae.Options
}

// DefaultOptions liefert die Standard-Architektur (Dim 48, Gruppen 4)
func DefaultOptions() Options {
	return Options{
		InChannels:  3,
		OutChannels: 3,
		Dim:         48,
		Blocks:      []int{4, 6, 6, 8},
		Refinement:  4,
		Heads:       []int{1, 2, 4, 8},
		FFNExpand:   2.66,
		Bias:        false,
		BiasFree:    false,
		DualPixel:   false,
		EmbedDim:    48,
		Group:       4,
		MAE:         mae.DefaultOptions(),
	}
}

// optionsFromConfig liest die Architektur aus den Modell-Metadaten.
// Fehlende Keys fallen auf die Defaults zurueck.
func optionsFromConfig(c fs.Config) Options {
	o := DefaultOptions()

	o.InChannels = int(c.Uint("in_channels", uint32(o.InChannels)))
	o.OutChannels = int(c.Uint("out_channels", uint32(o.OutChannels)))
	o.Dim = int(c.Uint("dim", uint32(o.Dim)))
	o.Refinement = int(c.Uint("num_refinement_blocks", uint32(o.Refinement)))
	o.FFNExpand = float64(c.Float("ffn_expansion_factor", float32(o.FFNExpand)))
	o.Bias = c.Bool("bias", o.Bias)
	o.BiasFree = c.String("layer_norm_type", "WithBias") == "BiasFree"
	o.DualPixel = c.Bool("dual_pixel_task", o.DualPixel)
	o.EmbedDim = int(c.Uint("embed_dim", uint32(o.EmbedDim)))
	o.Group = int(c.Uint("group", uint32(o.Group)))

	if v := c.Ints("num_blocks"); len(v) > 0 {
		o.Blocks = make([]int, len(v))
		for i, b := range v {
			o.Blocks[i] = int(b)
		}
	}
	if v := c.Ints("heads"); len(v) > 0 {
		o.Heads = make([]int, len(v))
		for i, h := range v {
			o.Heads[i] = int(h)
		}
	}

	o.MAE.ImageSize = int(c.Uint("mae.image_size", uint32(o.MAE.ImageSize)))
	o.MAE.PatchSize = int(c.Uint("mae.patch_size", uint32(o.MAE.PatchSize)))
	o.MAE.EmbedDim = int(c.Uint("mae.embed_dim", uint32(o.MAE.EmbedDim)))
	o.MAE.Depth = int(c.Uint("mae.depth", uint32(o.MAE.Depth)))
	o.MAE.Heads = int(c.Uint("mae.heads", uint32(o.MAE.Heads)))

	return o
}

// validate prueft die Architektur-Parameter auf Konsistenz
func (o Options) validate() error {
	if len(o.Blocks) != 4 || len(o.Heads) != 4 {
		return fmt.Errorf("num_blocks und heads brauchen 4 Ebenen, bekamen %d/%d", len(o.Blocks), len(o.Heads))
	}
	if o.Group < 2 || o.Group%2 != 0 {
		return fmt.Errorf("group muss gerade und >= 2 sein, bekam %d", o.Group)
	}
	if o.MAE.ImageSize%o.MAE.PatchSize != 0 {
		return fmt.Errorf("mae: bildgroesse %d nicht durch patchgroesse %d teilbar", o.MAE.ImageSize, o.MAE.PatchSize)
	}
	for i, h := range o.Heads {
		if d := o.Dim << i; d%h != 0 {
			return fmt.Errorf("ebene %d: dim %d nicht durch %d koepfe teilbar", i+1, d, h)
		}
	}
	return nil
}

// priorChannels gibt die Kanalbreite des Prior-Embeddings zurueck
func (o Options) priorChannels() int {
	return o.EmbedDim * 4
}

// priorTokens gibt die erwartete Token-Anzahl des Priors zurueck
func (o Options) priorTokens() int {
	return o.Group * o.Group
}
