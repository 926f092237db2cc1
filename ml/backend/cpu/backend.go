// backend.go - Reines Go CPU-Backend
//
// Das Backend haelt die benannten Gewichts-Tensoren eines Modells und
// erstellt Rechen-Kontexte. Gewichte werden aus Safetensors-Dateien im
// Modell-Verzeichnis geladen; die Metadaten aus config.json. Ein leeres
// Modell-Verzeichnis ist erlaubt: dann liefert Get fuer jeden Namen nil
// und die Module behalten ihre Konstruktor-Initialisierung.
package cpu

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/priorml/priorformer/fs"
	"github.com/priorml/priorformer/fs/safetensors"
	"github.com/priorml/priorformer/ml"
)

func init() {
	ml.RegisterBackend("cpu", New)
}

// Backend ist die CPU-Implementierung von ml.Backend
type Backend struct {
	config fs.Config

	mu      sync.RWMutex
	tensors map[string]*Tensor

	nThreads int
	seed     int64
}

// New erstellt ein CPU-Backend fuer das angegebene Modell-Verzeichnis
func New(modelPath string, params ml.BackendParams) (ml.Backend, error) {
	nThreads := params.NumThreads
	if nThreads <= 0 {
		nThreads = runtime.NumCPU()
	}

	b := &Backend{
		config:   fs.NewConfig(nil),
		tensors:  make(map[string]*Tensor),
		nThreads: nThreads,
		seed:     params.Seed,
	}

	if modelPath == "" {
		return b, nil
	}

	cfg, err := fs.LoadConfig(filepath.Join(modelPath, "config.json"))
	if err != nil {
		return nil, err
	}
	b.config = cfg

	matches, err := filepath.Glob(filepath.Join(modelPath, "*.safetensors"))
	if err != nil {
		return nil, err
	}

	for _, match := range matches {
		loaded, err := safetensors.Load(match)
		if err != nil {
			return nil, fmt.Errorf("gewichte laden fehlgeschlagen (%s): %w", match, err)
		}

		for name, st := range loaded {
			b.tensors[name] = &Tensor{
				data:    st.Data,
				shape:   st.Shape,
				strides: contiguousStrides(st.Shape),
			}
		}

		slog.Debug("loaded tensors", "file", filepath.Base(match), "count", len(loaded))
	}

	return b, nil
}

// NewFromStore erstellt ein Backend direkt aus einer Name/Tensor-Map.
// Wird von Tests und vom Torch-Import verwendet.
func NewFromStore(cfg fs.Config, store map[string]*safetensors.Tensor, params ml.BackendParams) *Backend {
	nThreads := params.NumThreads
	if nThreads <= 0 {
		nThreads = runtime.NumCPU()
	}
	if cfg == nil {
		cfg = fs.NewConfig(nil)
	}

	b := &Backend{
		config:   cfg,
		tensors:  make(map[string]*Tensor, len(store)),
		nThreads: nThreads,
		seed:     params.Seed,
	}

	for name, st := range store {
		b.tensors[name] = &Tensor{
			data:    st.Data,
			shape:   st.Shape,
			strides: contiguousStrides(st.Shape),
		}
	}

	return b
}

// Close gibt alle Ressourcen frei
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tensors = nil
}

// Config gibt die Modell-Metadaten zurueck
func (b *Backend) Config() fs.Config {
	return b.config
}

// Get gibt einen benannten Gewichts-Tensor zurueck (nil wenn nicht vorhanden)
func (b *Backend) Get(name string) ml.Tensor {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if t, ok := b.tensors[name]; ok {
		return t
	}

	// Typisiertes nil wuerde beim Interface-Vergleich als non-nil gelten
	return nil
}

// Put legt einen benannten Gewichts-Tensor ab (ueberschreibt vorhandene)
func (b *Backend) Put(name string, t ml.Tensor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tensors[name] = t.(*Tensor)
}

// NewContext erstellt einen neuen Rechen-Kontext
func (b *Backend) NewContext() ml.Context {
	return newContext(b.nThreads, b.seed)
}
