// safetensors_test.go - Tests fuer das Safetensors-Format
package safetensors

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/d4l3k/go-bfloat16"
	"github.com/google/go-cmp/cmp"
	"github.com/x448/float16"
)

func TestRoundTrip(t *testing.T) {
	in := map[string]*Tensor{
		"patch_embed.proj.weight": {Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
		"output.bias":             {Shape: []int{2}, Data: []float32{-1, 0.5}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("Tensor-Anzahl = %d, erwartet %d", len(out), len(in))
	}

	for name, want := range in {
		got, ok := out[name]
		if !ok {
			t.Fatalf("tensor %q fehlt", name)
		}
		if diff := cmp.Diff(want.Shape, got.Shape); diff != "" {
			t.Errorf("shape von %q (-want +got):\n%s", name, diff)
		}
		if diff := cmp.Diff(want.Data, got.Data); diff != "" {
			t.Errorf("daten von %q (-want +got):\n%s", name, diff)
		}
	}
}

func TestReadF16(t *testing.T) {
	// Header von Hand bauen: ein F16-Tensor mit zwei Werten
	header := []byte(`{"a":{"dtype":"F16","shape":[2],"data_offsets":[0,4]}}`)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(header)))
	buf.Write(header)
	binary.Write(&buf, binary.LittleEndian, float16.Fromfloat32(1.5).Bits())
	binary.Write(&buf, binary.LittleEndian, float16.Fromfloat32(-2.0).Bits())

	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []float32{1.5, -2.0}
	if diff := cmp.Diff(want, out["a"].Data); diff != "" {
		t.Errorf("daten (-want +got):\n%s", diff)
	}
}

func TestReadBF16(t *testing.T) {
	header := []byte(`{"a":{"dtype":"BF16","shape":[3],"data_offsets":[0,6]}}`)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(header)))
	buf.Write(header)
	buf.Write(bfloat16.EncodeFloat32([]float32{1.5, -2.0, 0.25}))

	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []float32{1.5, -2.0, 0.25}
	if diff := cmp.Diff(want, out["a"].Data); diff != "" {
		t.Errorf("daten (-want +got):\n%s", diff)
	}
}

func TestReadBadHeader(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(1<<40))

	if _, err := Read(&buf); err == nil {
		t.Fatal("erwarteter Fehler bei ueberlanger Header-Laenge blieb aus")
	}
}

func TestWriteShapeMismatch(t *testing.T) {
	in := map[string]*Tensor{
		"broken": {Shape: []int{4}, Data: []float32{1, 2}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err == nil {
		t.Fatal("erwarteter Fehler bei Shape-Mismatch blieb aus")
	}
}
