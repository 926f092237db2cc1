// tensor.go - Tensor-Struktur und Basis-Methoden
// Enthaelt: Tensor struct, Konstruktion, Shape-Zugriff, Materialisierung
package cpu

import (
	"fmt"
	"slices"

	"github.com/priorml/priorformer/ml"
)

// Tensor ist die CPU-Implementierung von ml.Tensor. Ein Tensor ist
// entweder ein eigenstaendiger row-major-Puffer oder eine View (Permute,
// Chunk) auf fremde Daten mit eigenen Strides und Offset.
type Tensor struct {
	data    []float32
	shape   []int
	strides []int // in Elementen
	offset  int
}

// newTensor erstellt einen contiguous Null-Tensor
func newTensor(shape []int) *Tensor {
	if len(shape) == 0 {
		panic("cpu: leere shape")
	}

	n := 1
	for i, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("cpu: shape[%d] = %d muss positiv sein", i, d))
		}
		n *= d
	}

	return &Tensor{
		data:    make([]float32, n),
		shape:   slices.Clone(shape),
		strides: contiguousStrides(shape),
	}
}

// contiguousStrides berechnet row-major-Strides fuer eine Shape
func contiguousStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// elements gibt die Element-Anzahl laut Shape zurueck
func (t *Tensor) elements() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// isContiguous prueft auf row-major-Layout ohne Offset-Luecken
func (t *Tensor) isContiguous() bool {
	return t.offset == 0 && slices.Equal(t.strides, contiguousStrides(t.shape))
}

// materialize gibt einen contiguous Tensor zurueck (self wenn bereits so)
func (t *Tensor) materialize() *Tensor {
	if t.isContiguous() {
		return t
	}

	out := newTensor(t.shape)
	idx := make([]int, len(t.shape))
	for i := range out.data {
		src := t.offset
		for d, j := range idx {
			src += j * t.strides[d]
		}
		out.data[i] = t.data[src]

		// Odometer weiterzaehlen
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < t.shape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return out
}

// Dim gibt die Groesse der n-ten Dimension zurueck
func (t *Tensor) Dim(n int) int {
	return t.shape[n]
}

// Shape gibt alle Dimensionen zurueck
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// DType gibt den Datentyp zurueck
func (t *Tensor) DType() ml.DType {
	return ml.DTypeF32
}

// Floats gibt die Werte in row-major-Reihenfolge zurueck
func (t *Tensor) Floats() []float32 {
	return slices.Clone(t.materialize().data)
}
