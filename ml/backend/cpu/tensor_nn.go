// tensor_nn.go - Neuronale Basis-Operationen
// Enthaelt: Softmax, GELU, L2Norm, LayerNorm, VarianceNorm
package cpu

import (
	"math"

	"github.com/priorml/priorformer/ml"
)

// Softmax normalisiert die letzte Dimension zu einer Verteilung.
// Das Maximum wird vor der Exponentiation abgezogen (numerische Stabilitaet).
func (t *Tensor) Softmax(ctx ml.Context) ml.Tensor {
	in := t.materialize()
	out := newTensor(in.shape)

	inner := in.shape[len(in.shape)-1]
	rows := in.elements() / inner

	for r := 0; r < rows; r++ {
		row := in.data[r*inner : (r+1)*inner]
		dst := out.data[r*inner : (r+1)*inner]

		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}

		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxv))
			dst[i] = float32(e)
			sum += e
		}

		inv := float32(1 / sum)
		for i := range dst {
			dst[i] *= inv
		}
	}

	return out
}

// GELU wendet die exakte GELU-Aktivierung an: 0.5*x*(1+erf(x/sqrt(2)))
func (t *Tensor) GELU(ctx ml.Context) ml.Tensor {
	in := t.materialize()
	out := newTensor(in.shape)
	for i, v := range in.data {
		x := float64(v)
		out.data[i] = float32(0.5 * x * (1 + math.Erf(x/math.Sqrt2)))
	}
	return out
}

// L2Norm normalisiert die letzte Dimension auf Einheitslaenge.
// Der Nenner ist max(||x||, eps), wie bei der ueblichen Normalize-Semantik.
func (t *Tensor) L2Norm(ctx ml.Context, eps float32) ml.Tensor {
	in := t.materialize()
	out := newTensor(in.shape)

	inner := in.shape[len(in.shape)-1]
	rows := in.elements() / inner

	for r := 0; r < rows; r++ {
		row := in.data[r*inner : (r+1)*inner]
		dst := out.data[r*inner : (r+1)*inner]

		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}

		norm := float32(math.Sqrt(sum))
		if norm < eps {
			norm = eps
		}

		inv := 1 / norm
		for i, v := range row {
			dst[i] = v * inv
		}
	}

	return out
}

// LayerNorm normalisiert die letzte Dimension: (x-mean)/sqrt(var+eps),
// anschliessend optional weight und bias
func (t *Tensor) LayerNorm(ctx ml.Context, weight, bias ml.Tensor, eps float32) ml.Tensor {
	return t.norm(true, weight, bias, eps)
}

// VarianceNorm teilt die letzte Dimension durch sqrt(var+eps) OHNE den
// Mittelwert zu subtrahieren. Die Varianz selbst ist mittelwert-zentriert.
func (t *Tensor) VarianceNorm(ctx ml.Context, weight ml.Tensor, eps float32) ml.Tensor {
	return t.norm(false, weight, nil, eps)
}

func (t *Tensor) norm(subtractMean bool, weight, bias ml.Tensor, eps float32) ml.Tensor {
	in := t.materialize()
	out := newTensor(in.shape)

	inner := in.shape[len(in.shape)-1]
	rows := in.elements() / inner

	var w, b []float32
	if weight != nil {
		w = weight.(*Tensor).materialize().data
		if len(w) != inner {
			panic("cpu: norm weight passt nicht zur letzten Dimension")
		}
	}
	if bias != nil {
		b = bias.(*Tensor).materialize().data
		if len(b) != inner {
			panic("cpu: norm bias passt nicht zur letzten Dimension")
		}
	}

	for r := 0; r < rows; r++ {
		row := in.data[r*inner : (r+1)*inner]
		dst := out.data[r*inner : (r+1)*inner]

		var sum float64
		for _, v := range row {
			sum += float64(v)
		}
		mean := sum / float64(inner)

		var variance float64
		for _, v := range row {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(inner)

		invStd := 1 / math.Sqrt(variance+float64(eps))

		for i, v := range row {
			x := float64(v)
			if subtractMean {
				x -= mean
			}
			y := float32(x * invStd)

			if w != nil {
				y *= w[i]
			}
			if b != nil {
				y += b[i]
			}
			dst[i] = y
		}
	}

	return out
}
