// tensor_arithmetic.go - Elementweise Operationen mit Broadcasting
// Enthaelt: Add, Mul, Scale und die Broadcast-Hilfsfunktionen
package cpu

import (
	"fmt"
	"slices"

	"github.com/priorml/priorformer/ml"
)

// Add addiert elementweise mit Broadcasting
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return binaryOp(t, t2.(*Tensor), func(x, y float32) float32 { return x + y })
}

// Mul multipliziert elementweise mit Broadcasting
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return binaryOp(t, t2.(*Tensor), func(x, y float32) float32 { return x * y })
}

// Scale multipliziert alle Elemente mit einem Skalar
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	in := t.materialize()
	out := newTensor(in.shape)
	f := float32(s)
	for i, v := range in.data {
		out.data[i] = v * f
	}
	return out
}

// broadcastShapes berechnet die Ergebnis-Shape nach numpy-Regeln:
// Shapes werden rechtsbuendig ausgerichtet, Dimensionen muessen gleich
// sein oder 1 betragen
func broadcastShapes(a, b []int) []int {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := 1; i <= n; i++ {
		da, db := 1, 1
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}

		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		case db == 1:
			out[n-i] = da
		default:
			panic(fmt.Sprintf("cpu: shapes %v und %v nicht broadcastbar", a, b))
		}
	}
	return out
}

// broadcastStrides richtet die Strides eines Eingabe-Tensors an der
// Ergebnis-Shape aus; Broadcast-Dimensionen erhalten Stride 0
func broadcastStrides(shape, strides, outShape []int) []int {
	out := make([]int, len(outShape))
	for i := 1; i <= len(outShape); i++ {
		if i <= len(shape) && shape[len(shape)-i] != 1 {
			out[len(outShape)-i] = strides[len(strides)-i]
		}
	}
	return out
}

// binaryOp wendet f elementweise auf zwei (broadcastbare) Tensoren an
func binaryOp(a, b *Tensor, f func(x, y float32) float32) *Tensor {
	a = a.materialize()
	b = b.materialize()

	// Schneller Pfad fuer identische Shapes
	if slices.Equal(a.shape, b.shape) {
		out := newTensor(a.shape)
		for i := range out.data {
			out.data[i] = f(a.data[i], b.data[i])
		}
		return out
	}

	outShape := broadcastShapes(a.shape, b.shape)
	out := newTensor(outShape)

	sa := broadcastStrides(a.shape, a.strides, outShape)
	sb := broadcastStrides(b.shape, b.strides, outShape)

	idx := make([]int, len(outShape))
	ia, ib := 0, 0
	for i := range out.data {
		out.data[i] = f(a.data[ia], b.data[ib])

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			ia += sa[d]
			ib += sb[d]
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
			ia -= outShape[d] * sa[d]
			ib -= outShape[d] * sb[d]
		}
	}

	return out
}
