// context.go - Rechen-Kontext fuer Tensor-Operationen
package ml

// Context erstellt Tensoren und buendelt die Ressourcen eines
// Vorwaerts-Durchlaufs. Alle in einem Kontext erstellten Tensoren
// sind nach Close ungueltig.
type Context interface {
	// Empty erstellt einen uninitialisierten Tensor
	Empty(dtype DType, shape ...int) Tensor

	// Zeros erstellt einen Null-Tensor
	Zeros(dtype DType, shape ...int) Tensor

	// Ones erstellt einen Eins-Tensor
	Ones(dtype DType, shape ...int) Tensor

	// FromFloats erstellt einen Tensor aus float32-Werten
	FromFloats(values []float32, shape ...int) Tensor

	// RandN erstellt einen normalverteilten Tensor (Mittel 0, gegebene Stddev)
	RandN(stddev float32, shape ...int) Tensor

	// Close gibt den Kontext frei
	Close()
}
