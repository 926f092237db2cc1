// tensor_matrix.go - Matrix-Multiplikation
// Die innere GEMM laeuft ueber gonum (blas32); Batches werden parallel
// auf die Worker des Kontexts verteilt.
package cpu

import (
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/priorml/priorformer/ml"
)

// Matmul berechnet eine (gebatchte) Matrix-Multiplikation
// [..., m, k] x [..., k, n] -> [..., m, n]. Ein 2D-Operand auf der
// rechten Seite wird ueber alle fuehrenden Dimensionen geteilt.
func (t *Tensor) Matmul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	a := t.materialize()
	b := t2.(*Tensor).materialize()

	if len(a.shape) < 2 || len(b.shape) < 2 {
		panic(fmt.Sprintf("cpu: matmul braucht mindestens 2D, bekam %v x %v", a.shape, b.shape))
	}

	m := a.shape[len(a.shape)-2]
	k := a.shape[len(a.shape)-1]
	k2 := b.shape[len(b.shape)-2]
	n := b.shape[len(b.shape)-1]
	if k != k2 {
		panic(fmt.Sprintf("cpu: matmul innere Dimension %d != %d (%v x %v)", k, k2, a.shape, b.shape))
	}

	leadA := a.shape[:len(a.shape)-2]
	leadB := b.shape[:len(b.shape)-2]
	shared := len(leadB) == 0
	if !shared && !slices.Equal(leadA, leadB) {
		panic(fmt.Sprintf("cpu: matmul Batch-Dimensionen %v != %v", leadA, leadB))
	}

	batch := 1
	for _, d := range leadA {
		batch *= d
	}

	out := newTensor(append(slices.Clone(leadA), m, n))

	var g errgroup.Group
	g.SetLimit(threads(ctx))
	for i := 0; i < batch; i++ {
		aSlice := a.data[i*m*k : (i+1)*m*k]
		bSlice := b.data
		if !shared {
			bSlice = b.data[i*k*n : (i+1)*k*n]
		}
		cSlice := out.data[i*m*n : (i+1)*m*n]

		g.Go(func() error {
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: m, Cols: k, Stride: k, Data: aSlice},
				blas32.General{Rows: k, Cols: n, Stride: n, Data: bSlice},
				0,
				blas32.General{Rows: m, Cols: n, Stride: n, Data: cSlice})
			return nil
		})
	}

	g.Wait()
	return out
}
