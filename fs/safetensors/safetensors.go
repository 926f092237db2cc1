// safetensors.go - Lesen und Schreiben des Safetensors-Formats
//
// Dateiaufbau: 8 Byte Header-Laenge (little-endian uint64), JSON-Header
// mit dtype/shape/data_offsets pro Tensor, danach der Rohdaten-Block.
// Unterstuetzte Datentypen beim Lesen: F32, F16, BF16, F64.
// Geschrieben wird immer F32.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Fehler-Definitionen
var (
	ErrBadHeader       = errors.New("safetensors: ungueltiger header")
	ErrUnsupportedType = errors.New("safetensors: nicht unterstuetzter dtype")
)

// Tensor enthaelt einen geladenen Tensor als float32-Daten
type Tensor struct {
	DType string
	Shape []int
	Data  []float32
}

// Elements gibt die Anzahl der Elemente laut Shape zurueck
func (t *Tensor) Elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// headerEntry beschreibt einen Tensor im JSON-Header
type headerEntry struct {
	DType   string `json:"dtype"`
	Shape   []int  `json:"shape"`
	Offsets [2]int `json:"data_offsets"`
}

// Load laedt alle Tensoren aus einer Safetensors-Datei
func Load(path string) (map[string]*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Read laedt alle Tensoren aus einem Reader
func Read(r io.Reader) (map[string]*Tensor, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	// Obergrenze gegen kaputte Dateien
	if headerLen == 0 || headerLen > 1<<30 {
		return nil, fmt.Errorf("%w: header-laenge %d", ErrBadHeader, headerLen)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	tensors := make(map[string]*Tensor, len(header))
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}

		var entry headerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("%w: tensor %q: %v", ErrBadHeader, name, err)
		}

		start, end := entry.Offsets[0], entry.Offsets[1]
		if start < 0 || end < start || end > len(data) {
			return nil, fmt.Errorf("%w: tensor %q: offsets [%d,%d]", ErrBadHeader, name, start, end)
		}

		values, err := decode(entry.DType, data[start:end])
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		tensors[name] = &Tensor{
			DType: entry.DType,
			Shape: slices.Clone(entry.Shape),
			Data:  values,
		}
	}

	return tensors, nil
}

// decode konvertiert Rohdaten in float32
func decode(dtype string, bts []byte) ([]float32, error) {
	switch dtype {
	case "F32":
		out := make([]float32, len(bts)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bts[i*4:]))
		}
		return out, nil
	case "F16":
		out := make([]float32, len(bts)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(bts[i*2:])).Float32()
		}
		return out, nil
	case "BF16":
		return bfloat16.DecodeFloat32(bts), nil
	case "F64":
		out := make([]float32, len(bts)/8)
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(bts[i*8:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dtype)
	}
}

// Save schreibt alle Tensoren als F32 in eine Safetensors-Datei
func Save(path string, tensors map[string]*Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return Write(f, tensors)
}

// Write schreibt alle Tensoren als F32 in einen Writer.
// Die Tensoren werden in sortierter Namens-Reihenfolge abgelegt,
// damit die Ausgabe deterministisch ist.
func Write(w io.Writer, tensors map[string]*Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)

	header := make(map[string]headerEntry, len(tensors))
	offset := 0
	for _, name := range names {
		t := tensors[name]
		if len(t.Data) != t.Elements() {
			return fmt.Errorf("safetensors: tensor %q: %d werte passen nicht zu shape %v", name, len(t.Data), t.Shape)
		}

		size := len(t.Data) * 4
		header[name] = headerEntry{
			DType:   "F32",
			Shape:   slices.Clone(t.Shape),
			Offsets: [2]int{offset, offset + size},
		}
		offset += size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return err
	}
	if _, err := w.Write(headerBytes); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}

	return nil
}
