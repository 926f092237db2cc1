// types.go - Basistypen fuer das ML-Paket
package ml

// DType bezeichnet den Datentyp eines Tensors
type DType int

const (
	// DTypeF32 ist der einzige Rechen-Datentyp des CPU-Backends.
	// F16/BF16 werden beim Laden nach F32 konvertiert (fs/safetensors).
	DTypeF32 DType = iota
)

// String gibt den Namen des Datentyps zurueck
func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "F32"
	default:
		return "unknown"
	}
}
