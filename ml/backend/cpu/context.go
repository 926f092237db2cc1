// context.go - Rechen-Kontext des CPU-Backends
//
// Die Ausfuehrung ist eager: jede Operation rechnet sofort und gibt einen
// neuen Tensor zurueck. Der Kontext traegt die Worker-Anzahl fuer
// parallele Kernel und den Zufallsgenerator fuer Initialisierungen.
package cpu

import (
	"math/rand"

	"github.com/priorml/priorformer/ml"
)

// Context implementiert ml.Context
type Context struct {
	nThreads int
	rng      *rand.Rand
}

func newContext(nThreads int, seed int64) *Context {
	return &Context{
		nThreads: nThreads,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Empty erstellt einen uninitialisierten Tensor
func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	if dtype != ml.DTypeF32 {
		panic("cpu: nur F32 wird unterstuetzt")
	}
	return newTensor(shape)
}

// Zeros erstellt einen Null-Tensor
func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	return c.Empty(dtype, shape...)
}

// Ones erstellt einen Eins-Tensor
func (c *Context) Ones(dtype ml.DType, shape ...int) ml.Tensor {
	t := newTensor(shape)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// FromFloats erstellt einen Tensor aus float32-Werten
func (c *Context) FromFloats(values []float32, shape ...int) ml.Tensor {
	t := newTensor(shape)
	if len(values) != len(t.data) {
		panic("cpu: werte passen nicht zur shape")
	}
	copy(t.data, values)
	return t
}

// RandN erstellt einen normalverteilten Tensor (Mittel 0, gegebene Stddev)
func (c *Context) RandN(stddev float32, shape ...int) ml.Tensor {
	t := newTensor(shape)
	for i := range t.data {
		t.data[i] = float32(c.rng.NormFloat64()) * stddev
	}
	return t
}

// Close gibt den Kontext frei
func (c *Context) Close() {}

// threads liest die Worker-Anzahl aus einem ml.Context
func threads(ctx ml.Context) int {
	if c, ok := ctx.(*Context); ok && c.nThreads > 0 {
		return c.nThreads
	}
	return 1
}
