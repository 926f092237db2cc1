// model_test.go - Tests fuer den MAE-Encoder
package mae

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/backend/cpu"
)

func testOptions() Options {
	return Options{
		ImageSize:  8,
		PatchSize:  4,
		InChannels: 3,
		EmbedDim:   8,
		Depth:      2,
		Heads:      2,
		MLPRatio:   2.0,
		Eps:        1e-6,
	}
}

func testContext() ml.Context {
	return cpu.NewFromStore(nil, nil, ml.BackendParams{NumThreads: 1, Seed: 7}).NewContext()
}

func TestEncoderShape(t *testing.T) {
	ctx := testContext()
	o := testOptions()

	e := New(ctx, o)
	out := e.Forward(ctx, ctx.RandN(1, 2, 3, 8, 8))

	// 2x2 Patches + cls = 5 Tokens
	if diff := cmp.Diff([]int{2, 5, 8}, out.Shape()); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}
}

func TestEncoderFalscheBildgroesse(t *testing.T) {
	ctx := testContext()
	e := New(ctx, testOptions())

	defer func() {
		if recover() == nil {
			t.Fatal("erwartetes panic bei falscher Bildgroesse blieb aus")
		}
	}()
	e.Forward(ctx, ctx.RandN(1, 1, 3, 16, 16))
}

func TestEncoderPositionsAbhaengig(t *testing.T) {
	ctx := testContext()
	o := testOptions()
	e := New(ctx, o)

	img := ctx.RandN(1, 1, 3, 8, 8)
	base := e.Forward(ctx, img).Floats()

	// Ein anderes Positions-Embedding muss die Ausgabe aendern
	e.PosEmbed = e.PosEmbed.Scale(ctx, 2)
	shifted := e.Forward(ctx, img).Floats()

	same := true
	for i := range base {
		if base[i] != shifted[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("Positions-Embedding hat keinen Einfluss auf die Ausgabe")
	}
}

func TestEncoderBatchKonsistenz(t *testing.T) {
	ctx := testContext()
	e := New(ctx, testOptions())

	a := ctx.RandN(1, 1, 3, 8, 8)
	single := e.Forward(ctx, a).Floats()

	// Dasselbe Bild doppelt im Batch liefert identische Zeilen
	batch := a.Concat(ctx, a, 0)
	both := e.Forward(ctx, batch).Floats()

	for i := range single {
		if diff := both[i] - single[i]; diff > 1e-5 || diff < -1e-5 {
			t.Fatalf("batch[0][%d] = %f, einzeln %f", i, both[i], single[i])
		}
	}
	for i := range single {
		if diff := both[len(single)+i] - single[i]; diff > 1e-5 || diff < -1e-5 {
			t.Fatalf("batch[1][%d] = %f, einzeln %f", i, both[len(single)+i], single[i])
		}
	}
}
