// MODUL: normalize
// ZWECK: Normalisierung und Tensor-Konvertierung
// INPUT: ImageInput, Normalisierungs-Parameter (mean, std)
// OUTPUT: float32-Tensoren im CHW-Layout und zurueck
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: Restaurierung arbeitet auf [0,1]; ImageNet-Preset fuer Encoder

package vision

import (
	"fmt"
	"image"
	"image/color"
)

// Standard-Normalisierungswerte
var (
	// ImageNet Default (MAE-Vortraining)
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}

	// Keine Normalisierung (nur Skalierung auf [0,1])
	NoNormMean = [3]float32{0.0, 0.0, 0.0}
	NoNormStd  = [3]float32{1.0, 1.0, 1.0}
)

// NormalizeRGB normalisiert ein Bild mit gegebenen mean/std Werten.
// Gibt einen float32-Slice im CHW Format zurueck (Channel-First).
func NormalizeRGB(img *ImageInput, mean, std [3]float32) []float32 {
	bounds := img.Image.Bounds()
	h := bounds.Dy()
	w := bounds.Dx()
	size := h * w

	// Pre-allozieren fuer CHW Layout
	result := make([]float32, size*3)
	rOffset := 0
	gOffset := size
	bOffset := size * 2

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := extractRGB(img, x, y)

			result[rOffset+idx] = (r - mean[0]) / std[0]
			result[gOffset+idx] = (g - mean[1]) / std[1]
			result[bOffset+idx] = (b - mean[2]) / std[2]
			idx++
		}
	}

	return result
}

// extractRGB holt RGB-Werte als float32 im Bereich [0,1]
func extractRGB(img *ImageInput, x, y int) (float32, float32, float32) {
	c := img.Image.At(x, y)
	r, g, b, _ := c.RGBA()
	// RGBA gibt 16-bit Werte zurueck, auf 8-bit konvertieren
	return float32(r>>8) / 255.0, float32(g>>8) / 255.0, float32(b>>8) / 255.0
}

// FromCHW baut aus einem CHW-Tensor im Bereich [0,1] wieder ein Bild.
// Werte ausserhalb des Bereichs werden abgeschnitten.
func FromCHW(data []float32, h, w int) (*image.RGBA, error) {
	if len(data) != 3*h*w {
		return nil, fmt.Errorf("tensor-laenge %d passt nicht zu 3x%dx%d", len(data), h, w)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	plane := h * w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				R: clampByte(data[i]),
				G: clampByte(data[plane+i]),
				B: clampByte(data[2*plane+i]),
				A: 255,
			})
		}
	}

	return img, nil
}

func clampByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
