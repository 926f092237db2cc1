// torch.go - PyTorch-Checkpoint-Import
// Hauptfunktionen: LoadTorch, torchTensor
package convert

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/priorml/priorformer/fs/safetensors"
)

var ErrUnsupportedStorage = errors.New("unsupported tensor storage")

// LoadTorch laedt ein gepickeltes PyTorch-Checkpoint und gibt alle
// Tensoren als float32 zurueck. Uebliche Wrapper-Keys ("model",
// "state_dict") werden ausgepackt; Nicht-Tensor-Eintraege ignoriert.
func LoadTorch(path string) (map[string]*safetensors.Tensor, error) {
	raw, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint laden fehlgeschlagen: %w", err)
	}

	dict, err := stateDict(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*safetensors.Tensor)
	for _, entry := range dict {
		name, ok := entry.Key.(string)
		if !ok {
			continue
		}

		t, ok := entry.Value.(*pytorch.Tensor)
		if !ok {
			continue
		}

		converted, err := torchTensor(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		out[name] = converted
	}

	return out, nil
}

// stateDict packt das State-Dict aus dem geladenen Objekt aus
func stateDict(raw any) ([]*types.OrderedDictEntry, error) {
	switch v := raw.(type) {
	case *types.OrderedDict:
		// Checkpoints verschachteln das State-Dict oft unter "model"
		for _, key := range []string{"model", "state_dict"} {
			if inner, ok := v.Get(key); ok {
				return stateDict(inner)
			}
		}

		out := make([]*types.OrderedDictEntry, 0, v.Len())
		for e := v.List.Front(); e != nil; e = e.Next() {
			out = append(out, e.Value.(*types.OrderedDictEntry))
		}
		return out, nil
	case *types.Dict:
		for _, key := range []string{"model", "state_dict"} {
			if inner, ok := v.Get(key); ok {
				return stateDict(inner)
			}
		}

		out := make([]*types.OrderedDictEntry, 0, v.Len())
		for _, e := range *v {
			out = append(out, &types.OrderedDictEntry{Key: e.Key, Value: e.Value})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unerwarteter checkpoint-inhalt %T", raw)
	}
}

// torchTensor materialisiert einen Torch-Tensor (Offset und Strides
// beruecksichtigt) als contiguous float32-Tensor
func torchTensor(t *pytorch.Tensor) (*safetensors.Tensor, error) {
	data, err := storageFloats(t.Source)
	if err != nil {
		return nil, err
	}

	n := 1
	for _, d := range t.Size {
		n *= d
	}

	out := &safetensors.Tensor{
		DType: "F32",
		Shape: append([]int(nil), t.Size...),
		Data:  make([]float32, n),
	}

	if n == 0 {
		return out, nil
	}

	idx := make([]int, len(t.Size))
	src := t.StorageOffset
	for i := range out.Data {
		out.Data[i] = data[src]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			src += t.Stride[d]
			if idx[d] < t.Size[d] {
				break
			}
			idx[d] = 0
			src -= t.Size[d] * t.Stride[d]
		}
	}

	return out, nil
}

// storageFloats gibt den Speicher eines Torch-Storage als float32 zurueck
func storageFloats(s pytorch.StorageInterface) ([]float32, error) {
	switch v := s.(type) {
	case *pytorch.FloatStorage:
		return v.Data, nil
	case *pytorch.HalfStorage:
		return v.Data, nil
	case *pytorch.BFloat16Storage:
		return v.Data, nil
	case *pytorch.DoubleStorage:
		out := make([]float32, len(v.Data))
		for i, f := range v.Data {
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStorage, s)
	}
}
