// tensor_resize.go - Aufloesungs-Operationen
// Enthaelt: SpaceToDepth, DepthToSpace, ResizeBilinear
package cpu

import (
	"fmt"
	"math"

	"github.com/priorml/priorformer/ml"
)

// SpaceToDepth verschiebt block x block Raumbloecke in die Kanal-Dimension:
// out[b, c*r*r + i*r + j, y, x] = in[b, c, y*r+i, x*r+j]
func (t *Tensor) SpaceToDepth(ctx ml.Context, block int) ml.Tensor {
	in := t.materialize()
	if len(in.shape) != 4 {
		panic(fmt.Sprintf("cpu: space-to-depth braucht 4D, bekam %v", in.shape))
	}

	b, c, h, w := in.shape[0], in.shape[1], in.shape[2], in.shape[3]
	if h%block != 0 || w%block != 0 {
		panic(fmt.Sprintf("cpu: space-to-depth %dx%d nicht durch %d teilbar", h, w, block))
	}

	outH, outW := h/block, w/block
	out := newTensor([]int{b, c * block * block, outH, outW})

	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			for i := 0; i < block; i++ {
				for j := 0; j < block; j++ {
					co := ci*block*block + i*block + j
					for y := 0; y < outH; y++ {
						for x := 0; x < outW; x++ {
							out.data[((bi*c*block*block+co)*outH+y)*outW+x] =
								in.data[((bi*c+ci)*h+y*block+i)*w+x*block+j]
						}
					}
				}
			}
		}
	}

	return out
}

// DepthToSpace ist die Umkehrung von SpaceToDepth:
// out[b, c, y*r+i, x*r+j] = in[b, c*r*r + i*r + j, y, x]
func (t *Tensor) DepthToSpace(ctx ml.Context, block int) ml.Tensor {
	in := t.materialize()
	if len(in.shape) != 4 {
		panic(fmt.Sprintf("cpu: depth-to-space braucht 4D, bekam %v", in.shape))
	}

	b, c, h, w := in.shape[0], in.shape[1], in.shape[2], in.shape[3]
	if c%(block*block) != 0 {
		panic(fmt.Sprintf("cpu: depth-to-space kanaele %d nicht durch %d teilbar", c, block*block))
	}

	outC := c / (block * block)
	outH, outW := h*block, w*block
	out := newTensor([]int{b, outC, outH, outW})

	for bi := 0; bi < b; bi++ {
		for co := 0; co < outC; co++ {
			for i := 0; i < block; i++ {
				for j := 0; j < block; j++ {
					ci := co*block*block + i*block + j
					for y := 0; y < h; y++ {
						for x := 0; x < w; x++ {
							out.data[((bi*outC+co)*outH+y*block+i)*outW+x*block+j] =
								in.data[((bi*c+ci)*h+y)*w+x]
						}
					}
				}
			}
		}
	}

	return out
}

// ResizeBilinear skaliert (b, c, h, w) bilinear auf (b, c, h2, w2).
// Quellkoordinate: (ziel + 0.5) * scale - 0.5 (align_corners=false).
func (t *Tensor) ResizeBilinear(ctx ml.Context, h2, w2 int) ml.Tensor {
	in := t.materialize()
	if len(in.shape) != 4 {
		panic(fmt.Sprintf("cpu: resize braucht 4D, bekam %v", in.shape))
	}
	if h2 <= 0 || w2 <= 0 {
		panic(fmt.Sprintf("cpu: ungueltige Zielgroesse %dx%d", h2, w2))
	}

	b, c, h, w := in.shape[0], in.shape[1], in.shape[2], in.shape[3]
	out := newTensor([]int{b, c, h2, w2})

	scaleY := float64(h) / float64(h2)
	scaleX := float64(w) / float64(w2)

	for y := 0; y < h2; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		srcY = math.Max(0, math.Min(srcY, float64(h-1)))
		y0 := int(math.Floor(srcY))
		fy := srcY - float64(y0)
		y1 := clamp(y0+1, 0, h-1)

		for x := 0; x < w2; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			srcX = math.Max(0, math.Min(srcX, float64(w-1)))
			x0 := int(math.Floor(srcX))
			fx := srcX - float64(x0)
			x1 := clamp(x0+1, 0, w-1)

			for bi := 0; bi < b; bi++ {
				for ci := 0; ci < c; ci++ {
					plane := in.data[(bi*c+ci)*h*w:]
					top := float64(plane[y0*w+x0])*(1-fx) + float64(plane[y0*w+x1])*fx
					bottom := float64(plane[y1*w+x0])*(1-fx) + float64(plane[y1*w+x1])*fx
					out.data[((bi*c+ci)*h2+y)*w2+x] = float32(top*(1-fy) + bottom*fy)
				}
			}
		}
	}

	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
