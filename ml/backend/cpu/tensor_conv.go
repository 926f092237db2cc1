// tensor_conv.go - 2D-Faltung
// Die Faltung laeuft als im2col plus GEMM (gonum blas32), pro Gruppe.
// Batches werden parallel auf die Worker des Kontexts verteilt.
package cpu

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/priorml/priorformer/ml"
)

// Conv2D berechnet eine 2D-Faltung. Eingabe (b, cIn, h, w), Gewichte
// (cOut, cIn/groups, kh, kw). groups == cIn ergibt eine Depthwise-Faltung.
func (t *Tensor) Conv2D(ctx ml.Context, weight ml.Tensor, stride0, stride1, padding0, padding1, dilation0, dilation1, groups int) ml.Tensor {
	in := t.materialize()
	w := weight.(*Tensor).materialize()

	if len(in.shape) != 4 || len(w.shape) != 4 {
		panic(fmt.Sprintf("cpu: conv2d braucht 4D-Tensoren, bekam %v und %v", in.shape, w.shape))
	}

	batch, cIn, h, width := in.shape[0], in.shape[1], in.shape[2], in.shape[3]
	cOut, cInG, kh, kw := w.shape[0], w.shape[1], w.shape[2], w.shape[3]

	if groups <= 0 || cIn%groups != 0 || cOut%groups != 0 {
		panic(fmt.Sprintf("cpu: conv2d groups=%d teilt cIn=%d/cOut=%d nicht", groups, cIn, cOut))
	}
	if cInG != cIn/groups {
		panic(fmt.Sprintf("cpu: conv2d gewichte (%v) passen nicht zu cIn=%d, groups=%d", w.shape, cIn, groups))
	}

	outH := (h+2*padding0-dilation0*(kh-1)-1)/stride0 + 1
	outW := (width+2*padding1-dilation1*(kw-1)-1)/stride1 + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("cpu: conv2d erzeugt leere Ausgabe (%dx%d)", outH, outW))
	}

	cOutG := cOut / groups
	out := newTensor([]int{batch, cOut, outH, outW})

	var g errgroup.Group
	g.SetLimit(threads(ctx))
	for b := 0; b < batch; b++ {
		g.Go(func() error {
			// im2col-Puffer pro Batch-Element (Worker-lokal)
			col := make([]float32, cInG*kh*kw*outH*outW)

			for grp := 0; grp < groups; grp++ {
				im2col(in.data[(b*cIn+grp*cInG)*h*width:], col, cInG, h, width,
					kh, kw, stride0, stride1, padding0, padding1, dilation0, dilation1, outH, outW)

				blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
					blas32.General{Rows: cOutG, Cols: cInG * kh * kw, Stride: cInG * kh * kw, Data: w.data[grp*cOutG*cInG*kh*kw:]},
					blas32.General{Rows: cInG * kh * kw, Cols: outH * outW, Stride: outH * outW, Data: col},
					0,
					blas32.General{Rows: cOutG, Cols: outH * outW, Stride: outH * outW, Data: out.data[(b*cOut+grp*cOutG)*outH*outW:]})
			}
			return nil
		})
	}

	g.Wait()
	return out
}

// im2col entfaltet die Faltungs-Fenster einer Gruppe in eine Matrix
// (cInG*kh*kw) x (outH*outW). Positionen ausserhalb des Bildes sind 0.
func im2col(src, col []float32, cInG, h, w, kh, kw, s0, s1, p0, p1, d0, d1, outH, outW int) {
	i := 0
	for c := 0; c < cInG; c++ {
		plane := src[c*h*w:]
		for ky := 0; ky < kh; ky++ {
			for kx := 0; kx < kw; kx++ {
				for oy := 0; oy < outH; oy++ {
					iy := oy*s0 + ky*d0 - p0
					for ox := 0; ox < outW; ox++ {
						ix := ox*s1 + kx*d1 - p1
						if iy >= 0 && iy < h && ix >= 0 && ix < w {
							col[i] = plane[iy*w+ix]
						} else {
							col[i] = 0
						}
						i++
					}
				}
			}
		}
	}
}
