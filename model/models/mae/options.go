// options.go - Konfiguration des MAE-Encoders
package mae

// Options beschreibt die Geometrie des Vision-Transformers
type Options struct {
	ImageSize  int
	PatchSize  int
	InChannels int
	EmbedDim   int
	Depth      int
	Heads      int
	MLPRatio   float64
	Eps        float32
}

// DefaultOptions liefert die Standard-Geometrie: 224er Bilder,
// 32er Patches (49 Patch-Tokens + cls = 50), schmale 64er Einbettung
func DefaultOptions() Options {
	return Options{
		ImageSize:  224,
		PatchSize:  32,
		InChannels: 3,
		EmbedDim:   64,
		Depth:      12,
		Heads:      4,
		MLPRatio:   4.0,
		Eps:        1e-6,
	}
}

// Grid gibt die Patch-Rasterbreite zurueck
func (o Options) Grid() int {
	return o.ImageSize / o.PatchSize
}

// Tokens gibt die Sequenzlaenge inklusive cls-Token zurueck
func (o Options) Tokens() int {
	return o.Grid()*o.Grid() + 1
}
