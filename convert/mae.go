// mae.go - Import vortrainierter MAE-Encoder-Gewichte
// Hauptfunktionen: MAE, LoadMAE, splitQKV
package convert

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdevine/tensor"

	"github.com/priorml/priorformer/fs/safetensors"
	"github.com/priorml/priorformer/ml/backend/cpu"
)

// maePrefix ist der Namensraum des Encoders im Gesamtmodell
const maePrefix = "mae_encoder."

// MAE laedt ein PyTorch-MAE-Checkpoint und uebersetzt die Encoder-Keys
// in den eigenen Namensraum. Decoder- und Maskierungs-Gewichte sowie
// unbekannte Keys werden geloggt und uebersprungen, nie ein Fehler:
// der Import ist best-effort, fehlende Gewichte behalten ihr Init.
func MAE(path string) (map[string]*safetensors.Tensor, error) {
	state, err := LoadTorch(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*safetensors.Tensor, len(state))
	for name, t := range state {
		mapped, ok := mapMAEKey(name)
		if !ok {
			slog.Debug("mae-import: key uebersprungen", "key", name)
			continue
		}

		if prefix, suffix, found := strings.Cut(mapped, ".qkv."); found {
			parts, err := splitQKV(t)
			if err != nil {
				return nil, fmt.Errorf("qkv %q: %w", name, err)
			}
			for i, p := range []string{"q", "k", "v"} {
				out[prefix+"."+p+"."+suffix] = parts[i]
			}
			continue
		}

		out[mapped] = t
	}

	return out, nil
}

// LoadMAE legt importierte MAE-Gewichte in ein CPU-Backend
func LoadMAE(b *cpu.Backend, path string) error {
	store, err := MAE(path)
	if err != nil {
		return err
	}

	ctx := b.NewContext()
	defer ctx.Close()

	for name, t := range store {
		b.Put(name, ctx.FromFloats(t.Data, t.Shape...))
	}

	slog.Info("mae-gewichte geladen", "path", path, "tensors", len(store))
	return nil
}

// mapMAEKey uebersetzt einen Torch-Key in den eigenen Namensraum.
// ok == false bedeutet: Key gehoert nicht zum Encoder.
func mapMAEKey(name string) (string, bool) {
	switch {
	case strings.HasPrefix(name, "decoder"),
		name == "mask_token":
		// Trainings-Haelfte des MAE, hier nicht gebraucht
		return "", false
	case name == "cls_token",
		name == "pos_embed",
		strings.HasPrefix(name, "patch_embed.proj."),
		strings.HasPrefix(name, "norm."),
		strings.HasPrefix(name, "blocks."):
		return maePrefix + name, true
	default:
		return "", false
	}
}

// splitQKV teilt ein fusioniertes qkv-Gewicht (3*dim, ...) entlang der
// ersten Achse in die drei Einzel-Projektionen
func splitQKV(t *safetensors.Tensor) ([3]*safetensors.Tensor, error) {
	var out [3]*safetensors.Tensor

	if len(t.Shape) == 0 || t.Shape[0]%3 != 0 {
		return out, fmt.Errorf("qkv-shape %v nicht durch 3 teilbar", t.Shape)
	}

	rows := t.Shape[0] / 3
	dense := tensor.New(tensor.WithShape(t.Shape...), tensor.WithBacking(t.Data))

	for i := range out {
		part, err := dense.Slice(tensor.S(i*rows, (i+1)*rows))
		if err != nil {
			return out, err
		}

		data, ok := part.Materialize().Data().([]float32)
		if !ok {
			return out, fmt.Errorf("unerwarteter slice-typ fuer shape %v", t.Shape)
		}

		shape := append([]int{rows}, t.Shape[1:]...)
		out[i] = &safetensors.Tensor{
			DType: "F32",
			Shape: shape,
			Data:  append([]float32(nil), data...),
		}
	}

	return out, nil
}
