// tensor_shape.go - Shape-Operationen
// Enthaelt: Reshape, Permute, Contiguous, Chunk
package cpu

import (
	"fmt"
	"slices"

	"github.com/priorml/priorformer/ml"
)

// Reshape aendert die Shape bei gleicher Element-Anzahl. Auf contiguous
// Tensoren ist das eine View auf dieselben Daten.
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}

	src := t.materialize()
	if n != src.elements() {
		panic(fmt.Sprintf("cpu: reshape %v -> %v aendert die Element-Anzahl", t.shape, shape))
	}

	return &Tensor{
		data:    src.data,
		shape:   slices.Clone(shape),
		strides: contiguousStrides(shape),
	}
}

// Permute ordnet die Dimensionen um und gibt eine View zurueck
func (t *Tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	if len(order) != len(t.shape) {
		panic(fmt.Sprintf("cpu: permute-Reihenfolge %v passt nicht zu shape %v", order, t.shape))
	}

	seen := make([]bool, len(order))
	shape := make([]int, len(order))
	strides := make([]int, len(order))
	for i, o := range order {
		if o < 0 || o >= len(order) || seen[o] {
			panic(fmt.Sprintf("cpu: ungueltige permute-Reihenfolge %v", order))
		}
		seen[o] = true
		shape[i] = t.shape[o]
		strides[i] = t.strides[o]
	}

	return &Tensor{
		data:    t.data,
		shape:   shape,
		strides: strides,
		offset:  t.offset,
	}
}

// Contiguous materialisiert eine View in row-major-Speicherlayout
func (t *Tensor) Contiguous(ctx ml.Context) ml.Tensor {
	return t.materialize()
}

// Concat haengt t2 entlang der Dimension dim an
func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, dim int) ml.Tensor {
	a := t.materialize()
	b := t2.(*Tensor).materialize()

	if len(a.shape) != len(b.shape) || dim < 0 || dim >= len(a.shape) {
		panic(fmt.Sprintf("cpu: concat %v und %v entlang %d unvereinbar", a.shape, b.shape, dim))
	}
	for i := range a.shape {
		if i != dim && a.shape[i] != b.shape[i] {
			panic(fmt.Sprintf("cpu: concat %v und %v weichen in Dimension %d ab", a.shape, b.shape, i))
		}
	}

	shape := slices.Clone(a.shape)
	shape[dim] = a.shape[dim] + b.shape[dim]
	out := newTensor(shape)

	// Zeilen vor der Concat-Dimension, Elemente ab der Concat-Dimension
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= a.shape[i]
	}
	innerA := a.elements() / outer
	innerB := b.elements() / outer

	for o := 0; o < outer; o++ {
		copy(out.data[o*(innerA+innerB):], a.data[o*innerA:(o+1)*innerA])
		copy(out.data[o*(innerA+innerB)+innerA:], b.data[o*innerB:(o+1)*innerB])
	}

	return out
}

// Chunk teilt die Dimension dim in n gleich grosse Views
func (t *Tensor) Chunk(ctx ml.Context, dim, n int) []ml.Tensor {
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Sprintf("cpu: chunk-Dimension %d ausserhalb von %v", dim, t.shape))
	}
	if n <= 0 || t.shape[dim]%n != 0 {
		panic(fmt.Sprintf("cpu: dimension %d (=%d) nicht durch %d teilbar", dim, t.shape[dim], n))
	}

	size := t.shape[dim] / n
	out := make([]ml.Tensor, n)
	for i := range out {
		shape := slices.Clone(t.shape)
		shape[dim] = size

		out[i] = &Tensor{
			data:    t.data,
			shape:   shape,
			strides: slices.Clone(t.strides),
			offset:  t.offset + i*size*t.strides[dim],
		}
	}

	return out
}
