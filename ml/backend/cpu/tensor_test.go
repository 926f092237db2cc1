// tensor_test.go - Tests fuer die CPU-Tensor-Operationen
package cpu

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/priorml/priorformer/ml"
)

func testContext() *Context {
	return newContext(1, 0)
}

// almostEqual vergleicht float32-Slices mit Toleranz
func almostEqual(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("laenge = %d, erwartet %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Fatalf("wert[%d] = %f, erwartet %f", i, got[i], want[i])
		}
	}
}

func TestMatmul(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := ctx.FromFloats([]float32{7, 8, 9, 10, 11, 12}, 3, 2)

	out := a.Matmul(ctx, b)
	if diff := cmp.Diff([]int{2, 2}, out.Shape()); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}

	almostEqual(t, out.Floats(), []float32{58, 64, 139, 154}, 1e-5)
}

func TestMatmulBatched(t *testing.T) {
	ctx := testContext()

	// Zwei Batches gegen eine geteilte rechte Matrix
	a := ctx.FromFloats([]float32{1, 0, 0, 1, 2, 0, 0, 2}, 2, 2, 2)
	b := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)

	out := a.Matmul(ctx, b)
	if diff := cmp.Diff([]int{2, 2, 2}, out.Shape()); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}

	almostEqual(t, out.Floats(), []float32{1, 2, 3, 4, 2, 4, 6, 8}, 1e-5)
}

func TestMatmulShapeMismatch(t *testing.T) {
	ctx := testContext()
	a := ctx.FromFloats(make([]float32, 6), 2, 3)
	b := ctx.FromFloats(make([]float32, 8), 4, 2)

	defer func() {
		if recover() == nil {
			t.Fatal("erwartetes panic bei Shape-Mismatch blieb aus")
		}
	}()
	a.Matmul(ctx, b)
}

func TestAddBroadcast(t *testing.T) {
	ctx := testContext()

	// (2, 2, 2) + (2, 1, 1): Kanal-Bias wie bei FiLM-Konditionierung
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	k := ctx.FromFloats([]float32{10, 20}, 2, 1, 1)

	out := x.Add(ctx, k)
	almostEqual(t, out.Floats(), []float32{11, 12, 13, 14, 25, 26, 27, 28}, 1e-6)
}

func TestMulBroadcastLeading(t *testing.T) {
	ctx := testContext()

	// (heads, 1, 1) Temperatur gegen (b, heads, c, c) Attention-Matrix
	attn := ctx.Ones(ml.DTypeF32, 1, 2, 2, 2)
	temp := ctx.FromFloats([]float32{2, 3}, 2, 1, 1)

	out := attn.Mul(ctx, temp)
	almostEqual(t, out.Floats(), []float32{2, 2, 2, 2, 3, 3, 3, 3}, 1e-6)
}

func TestSoftmax(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{1, 2, 3, 1, 1, 1}, 2, 3)
	out := x.Softmax(ctx).Floats()

	// Jede Zeile summiert zu 1
	for r := 0; r < 2; r++ {
		var sum float64
		for i := 0; i < 3; i++ {
			sum += float64(out[r*3+i])
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("zeile %d summiert zu %f", r, sum)
		}
	}

	// Gleichverteilte Eingabe ergibt Gleichverteilung
	almostEqual(t, out[3:], []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-5)
}

func TestGELU(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{0, 100, -100}, 3)
	out := x.GELU(ctx).Floats()

	almostEqual(t, out, []float32{0, 100, 0}, 1e-4)
}

func TestL2Norm(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{3, 4}, 1, 2)
	out := x.L2Norm(ctx, 1e-12).Floats()

	almostEqual(t, out, []float32{0.6, 0.8}, 1e-6)
}

func TestLayerNormMeanInvariantBisAffine(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{1, 2, 3, 4}, 1, 4)
	shifted := x.Add(ctx, ctx.FromFloats([]float32{5, 5, 5, 5}, 1, 4))

	a := x.LayerNorm(ctx, nil, nil, 1e-5).Floats()
	b := shifted.LayerNorm(ctx, nil, nil, 1e-5).Floats()

	// Mittelwert-Subtraktion macht LayerNorm verschiebungs-invariant
	almostEqual(t, a, b, 1e-5)
}

func TestVarianceNormNichtVerschiebungsInvariant(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{1, 2, 3, 4}, 1, 4)
	shifted := x.Add(ctx, ctx.FromFloats([]float32{5, 5, 5, 5}, 1, 4))

	a := x.VarianceNorm(ctx, nil, 1e-5).Floats()
	b := shifted.VarianceNorm(ctx, nil, 1e-5).Floats()

	// Die bias-freie Variante teilt nur durch die Standardabweichung,
	// eine konstante Verschiebung bleibt daher sichtbar
	same := true
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > 1e-5 {
			same = false
		}
	}
	if same {
		t.Fatal("VarianceNorm darf nicht verschiebungs-invariant sein")
	}
}

func TestConv2DIdentity(t *testing.T) {
	ctx := testContext()

	// 1x1-Kernel mit Gewicht 1 reproduziert die Eingabe
	x := ctx.FromFloats([]float32{1, 2, 3, 4}, 1, 1, 2, 2)
	w := ctx.FromFloats([]float32{1}, 1, 1, 1, 1)

	out := x.Conv2D(ctx, w, 1, 1, 0, 0, 1, 1, 1)
	almostEqual(t, out.Floats(), []float32{1, 2, 3, 4}, 1e-6)
}

func TestConv2DPadding(t *testing.T) {
	ctx := testContext()

	// 3x3-Summenkernel mit Padding 1 auf einem Einzelpixel
	x := ctx.FromFloats([]float32{0, 0, 0, 0, 1, 0, 0, 0, 0}, 1, 1, 3, 3)
	w := ctx.Ones(ml.DTypeF32, 1, 1, 3, 3)

	out := x.Conv2D(ctx, w, 1, 1, 1, 1, 1, 1, 1)
	// Jede Position, deren Fenster das Zentrum enthaelt, sieht die 1
	almostEqual(t, out.Floats(), []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, 1e-6)
}

func TestConv2DDepthwise(t *testing.T) {
	ctx := testContext()

	// Depthwise: jeder Kanal behaelt seinen eigenen Kernel
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 10, 20, 30, 40}, 1, 2, 2, 2)
	w := ctx.FromFloats([]float32{1, 2}, 2, 1, 1, 1)

	out := x.Conv2D(ctx, w, 1, 1, 0, 0, 1, 1, 2)
	almostEqual(t, out.Floats(), []float32{1, 2, 3, 4, 20, 40, 60, 80}, 1e-6)
}

func TestSpaceToDepthRoundTrip(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 1, 1, 4, 4)

	down := x.SpaceToDepth(ctx, 2)
	if diff := cmp.Diff([]int{1, 4, 2, 2}, down.Shape()); diff != "" {
		t.Fatalf("shape nach SpaceToDepth (-want +got):\n%s", diff)
	}

	up := down.DepthToSpace(ctx, 2)
	if diff := cmp.Diff(x.Shape(), up.Shape()); diff != "" {
		t.Fatalf("shape nach Roundtrip (-want +got):\n%s", diff)
	}

	almostEqual(t, up.Floats(), x.Floats(), 0)
}

func TestResizeBilinearKonstant(t *testing.T) {
	ctx := testContext()

	// Konstante Flaechen bleiben bei bilinearer Skalierung konstant
	x := ctx.FromFloats([]float32{5, 5, 5, 5}, 1, 1, 2, 2)
	out := x.ResizeBilinear(ctx, 4, 4).Floats()

	for i, v := range out {
		if math.Abs(float64(v-5)) > 1e-6 {
			t.Fatalf("wert[%d] = %f, erwartet 5", i, v)
		}
	}
}

func TestPermuteContiguous(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	p := x.Permute(ctx, 1, 0)

	if diff := cmp.Diff([]int{3, 2}, p.Shape()); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}

	almostEqual(t, p.Contiguous(ctx).Floats(), []float32{1, 4, 2, 5, 3, 6}, 0)
}

func TestChunk(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 1, 6)
	parts := x.Chunk(ctx, 1, 3)

	if len(parts) != 3 {
		t.Fatalf("chunk-anzahl = %d, erwartet 3", len(parts))
	}

	almostEqual(t, parts[0].Floats(), []float32{1, 2}, 0)
	almostEqual(t, parts[1].Floats(), []float32{3, 4}, 0)
	almostEqual(t, parts[2].Floats(), []float32{5, 6}, 0)
}

func TestChunkKanalDimension(t *testing.T) {
	ctx := testContext()

	// qkv-Split: (1, 6, 1, 1) -> 3 x (1, 2, 1, 1)
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 1, 6, 1, 1)
	parts := x.Chunk(ctx, 1, 3)

	almostEqual(t, parts[1].Floats(), []float32{3, 4}, 0)
}

func TestConcat(t *testing.T) {
	ctx := testContext()

	// cls-Token (1, 1, 2) vor Patch-Tokens (1, 2, 2)
	cls := ctx.FromFloats([]float32{9, 9}, 1, 1, 2)
	tokens := ctx.FromFloats([]float32{1, 2, 3, 4}, 1, 2, 2)

	out := cls.Concat(ctx, tokens, 1)
	if diff := cmp.Diff([]int{1, 3, 2}, out.Shape()); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}

	almostEqual(t, out.Floats(), []float32{9, 9, 1, 2, 3, 4}, 0)
}

func TestConcatShapeMismatch(t *testing.T) {
	ctx := testContext()
	a := ctx.FromFloats(make([]float32, 4), 2, 2)
	b := ctx.FromFloats(make([]float32, 6), 3, 2)

	defer func() {
		if recover() == nil {
			t.Fatal("erwartetes panic bei Concat-Mismatch blieb aus")
		}
	}()
	a.Concat(ctx, b, 1)
}

func TestReshapeErhaeltDaten(t *testing.T) {
	ctx := testContext()

	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	r := x.Reshape(ctx, 3, 2)

	almostEqual(t, r.Floats(), []float32{1, 2, 3, 4, 5, 6}, 0)
}
