// Package priorformer - Hierarchischer Restaurierungs-Transformer
//
// Restormer-artiger U-Decoder, dessen innerste Feature-Map nicht aus
// einem Faltungs-Encoder stammt, sondern aus einem MAE-Vision-Encoder.
// Ein kompaktes Prior-Embedding konditioniert die Stufen: per
// Cross-Attention (HIM) in den aeusseren Ebenen, per Feature-Modulation
// in der innersten. Ohne Prior laeuft das Netz unkonditioniert.
package priorformer

import (
	"fmt"

	"github.com/priorml/priorformer/fs"
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/nn"
	"github.com/priorml/priorformer/model"
	"github.com/priorml/priorformer/model/models/mae"
)

// Transformer ist das Gesamtmodell
type Transformer struct {
	model.Base

	PatchEmbed     *nn.Conv2D       `st:"patch_embed.proj"`
	ChannelReducer *nn.Conv2D       `st:"channel_reducer"`
	MAE            *mae.Encoder     `st:"mae_encoder"`
	Adapter        *LatentAdapter   `st:"adapter"`
	PriorDown1     *PriorProjection `st:"down_1"`
	PriorDown2     *PriorProjection `st:"down_2"`

	// Der Faltungs-Encoder-Ast wird aufgebaut (Parameter existieren und
	// erscheinen im Zustand), aber im Vorwaerts-Pass umgangen: die
	// innerste Feature-Map kommt aus dem MAE-Ast.
	Encoder1 *Stage      `st:"encoder_level1"`
	Down12   *Downsample `st:"down1_2"`
	Encoder2 *Stage      `st:"encoder_level2"`
	Down23   *Downsample `st:"down2_3"`
	Encoder3 *Stage      `st:"encoder_level3"`
	Down34   *Downsample `st:"down3_4"`

	Latent *Stage `st:"latent"`

	Up43      *Upsample  `st:"up4_3"`
	Increase3 *nn.Conv2D `st:"channel_increase_level3"`
	Reduce3   *nn.Conv2D `st:"reduce_chan_level3"`
	Decoder3  *Stage     `st:"decoder_level3"`

	Up32      *Upsample  `st:"up3_2"`
	Increase2 *nn.Conv2D `st:"channel_increase_level2"`
	Reduce2   *nn.Conv2D `st:"reduce_chan_level2"`
	Decoder2  *Stage     `st:"decoder_level2"`

	Up21      *Upsample  `st:"up2_1"`
	Increase1 *nn.Conv2D `st:"channel_increase_level1"`
	Decoder1  *Stage     `st:"decoder_level1"`

	Refinement *Stage `st:"refinement"`

	Skip   *nn.Conv2D `st:"skip_conv"`
	Output *nn.Conv2D `st:"output"`

	opts Options
}

func init() {
	model.Register("priorformer", New)
}

// New baut das Modell mit zufaellig initialisierten Parametern auf
func New(ctx ml.Context, c fs.Config) (model.Model, error) {
	return NewWithOptions(ctx, optionsFromConfig(c))
}

// NewWithOptions baut das Modell aus expliziten Optionen auf
func NewWithOptions(ctx ml.Context, o Options) (*Transformer, error) {
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("priorformer: %w", err)
	}

	d1, d2, d3, d4 := o.Dim, o.Dim*2, o.Dim*4, o.Dim*8
	grid := o.MAE.ImageSize / 16

	t := &Transformer{
		PatchEmbed:     nn.NewConv2D(ctx, o.InChannels, d1, 3, 1, o.Bias),
		ChannelReducer: nn.NewConv2D(ctx, d1, o.MAE.InChannels, 1, 1, false),
		MAE:            mae.New(ctx, o.MAE),
		Adapter:        newLatentAdapter(ctx, o.MAE.Tokens(), o.MAE.EmbedDim, d4, grid),
		PriorDown1:     newPriorProjection(ctx, o.priorTokens(), o.priorTokens()/4, o.priorChannels()),
		PriorDown2:     newPriorProjection(ctx, o.priorTokens()/4, 1, o.priorChannels()),

		Encoder1: newStage(ctx, o, d1, o.Heads[0], o.Blocks[0], o.Group),
		Down12:   newDownsample(ctx, d1),
		Encoder2: newStage(ctx, o, d2, o.Heads[1], o.Blocks[1], o.Group/2),
		Down23:   newDownsample(ctx, d2),
		Encoder3: newStage(ctx, o, d3, o.Heads[2], o.Blocks[2], o.Group/2),
		Down34:   newDownsample(ctx, d3),

		Latent: newStage(ctx, o, d4, o.Heads[3], o.Blocks[3], 1),

		Up43:      newUpsample(ctx, d4),
		Increase3: nn.NewConv2D(ctx, d3, d4, 1, 1, true),
		Reduce3:   nn.NewConv2D(ctx, d4, d3, 1, 1, o.Bias),
		Decoder3:  newStage(ctx, o, d3, o.Heads[2], o.Blocks[2], o.Group/2),

		Up32:      newUpsample(ctx, d3),
		Increase2: nn.NewConv2D(ctx, d2, d3, 1, 1, true),
		Reduce2:   nn.NewConv2D(ctx, d3, d2, 1, 1, o.Bias),
		Decoder2:  newStage(ctx, o, d2, o.Heads[1], o.Blocks[1], o.Group/2),

		Up21:      newUpsample(ctx, d2),
		Increase1: nn.NewConv2D(ctx, d1, d2, 1, 1, true),
		Decoder1:  newStage(ctx, o, d2, o.Heads[0], o.Blocks[0], o.Group),

		Refinement: newStage(ctx, o, d2, o.Heads[0], o.Refinement, o.Group),

		Output: nn.NewConv2D(ctx, d2, o.OutChannels, 3, 1, o.Bias),

		opts: o,
	}

	if o.DualPixel {
		t.Skip = nn.NewConv2D(ctx, o.MAE.InChannels, d2, 1, 1, o.Bias)
	}

	return t, nil
}

// Options gibt die Architektur-Parameter zurueck
func (t *Transformer) Options() Options {
	return t.opts
}

// Forward restauriert inpImg (b, in, s, s) zu (b, out, s, s). prior ist
// das kompakte Konditionierungs-Embedding (b, group^2, embedDim*4) oder
// nil fuer einen unkonditionierten Lauf.
func (t *Transformer) Forward(ctx ml.Context, inpImg, prior ml.Tensor) (ml.Tensor, error) {
	o := t.opts

	if inpImg.Dim(1) != o.InChannels {
		return nil, fmt.Errorf("priorformer: eingabe hat %d kanaele, erwartet %d", inpImg.Dim(1), o.InChannels)
	}
	if inpImg.Dim(2) != o.MAE.ImageSize || inpImg.Dim(3) != o.MAE.ImageSize {
		return nil, fmt.Errorf("priorformer: eingabe %dx%d, erwartet %dx%d",
			inpImg.Dim(2), inpImg.Dim(3), o.MAE.ImageSize, o.MAE.ImageSize)
	}

	// Multi-Skalen-Prior: alle Tokens, group^2/4 Tokens, flacher Vektor
	prior1 := prior
	var prior2, prior3 ml.Tensor
	if prior != nil {
		if prior.Dim(1) != o.priorTokens() || prior.Dim(2) != o.priorChannels() {
			return nil, fmt.Errorf("priorformer: prior-shape %v, erwartet (b, %d, %d)",
				prior.Shape(), o.priorTokens(), o.priorChannels())
		}

		prior2 = t.PriorDown1.Forward(ctx, prior1)
		prior3 = t.PriorDown2.Forward(ctx, prior2).Reshape(ctx, prior.Dim(0), o.priorChannels())
	}

	// MAE-Ast: Einbettung, Kanal-Reduktion, Encoder, Latent-Adapter
	embedded := t.PatchEmbed.Forward(ctx, inpImg, 1, 1, 1, 1)
	reduced := t.ChannelReducer.Forward(ctx, embedded, 1, 0, 1, 1)
	latentIn := t.Adapter.Forward(ctx, t.MAE.Forward(ctx, reduced))

	latent := t.Latent.Forward(ctx, latentIn, prior3)

	x := t.Up43.Forward(ctx, latent)
	x = t.Increase3.Forward(ctx, x, 1, 0, 1, 1)
	x = t.Reduce3.Forward(ctx, x, 1, 0, 1, 1)
	x = t.Decoder3.Forward(ctx, x, prior2)

	x = t.Up32.Forward(ctx, x)
	x = t.Increase2.Forward(ctx, x, 1, 0, 1, 1)
	x = t.Reduce2.Forward(ctx, x, 1, 0, 1, 1)
	x = t.Decoder2.Forward(ctx, x, prior2)

	x = t.Up21.Forward(ctx, x)
	x = t.Increase1.Forward(ctx, x, 1, 0, 1, 1)
	x = t.Decoder1.Forward(ctx, x, prior1)

	x = t.Refinement.Forward(ctx, x, prior1)

	if o.DualPixel {
		x = x.Add(ctx, t.Skip.Forward(ctx, reduced, 1, 0, 1, 1))
		return t.Output.Forward(ctx, x, 1, 1, 1, 1), nil
	}

	return t.Output.Forward(ctx, x, 1, 1, 1, 1).Add(ctx, inpImg), nil
}
