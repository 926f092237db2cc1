// MODUL: tensor
// ZWECK: Vorverarbeitung fuer das Restaurierungs-Modell
// INPUT: rohe Bild-Bytes, Modell-Eingabegroesse
// OUTPUT: CHW-float32-Eingabe bzw. PNG-Bytes der Ausgabe
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: image/png

package vision

import (
	"bytes"
	"image/png"
)

// Prepare dekodiert ein Bild, skaliert es auf size x size und gibt den
// CHW-Tensor im Bereich [0,1] samt Shape (3, size, size) zurueck
func Prepare(data []byte, size int) ([]float32, []int, error) {
	img, err := LoadImageFromBytes(data)
	if err != nil {
		return nil, nil, err
	}

	return PrepareImage(img, size)
}

// PrepareImage skaliert ein bereits dekodiertes Bild auf size x size
// und gibt den CHW-Tensor im Bereich [0,1] samt Shape zurueck
func PrepareImage(img *ImageInput, size int) ([]float32, []int, error) {
	img, err := ResizeImage(img, size, size)
	if err != nil {
		return nil, nil, err
	}

	return NormalizeRGB(img, NoNormMean, NoNormStd), []int{3, size, size}, nil
}

// EncodePNG kodiert einen CHW-Tensor im Bereich [0,1] als PNG
func EncodePNG(data []float32, h, w int) ([]byte, error) {
	img, err := FromCHW(data, h, w)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
