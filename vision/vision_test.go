// vision_test.go - Tests fuer Dekodierung, Normalisierung und Round-Trip
package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// testPNG erzeugt ein einfarbiges PNG im Speicher
func testPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png kodieren: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want ImageFormat
	}{
		{"png", []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0}, FormatPNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, FormatJPEG},
		{"bmp", []byte{'B', 'M', 0, 0}, FormatBMP},
		{"tiff le", []byte{'I', 'I', 0x2A, 0x00}, FormatTIFF},
		{"tiff be", []byte{'M', 'M', 0x00, 0x2A}, FormatTIFF},
		{"webp", append([]byte("RIFF"), []byte{0, 0, 0, 0, 'W', 'E', 'B', 'P'}...), FormatWebP},
		{"riff ohne webp", []byte("RIFFxxxxxxxx"), FormatUnknown},
		{"zu kurz", []byte{0x89}, FormatUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.data); got != tc.want {
				t.Errorf("DetectFormat = %q, erwartet %q", got, tc.want)
			}
		})
	}
}

func TestLoadImageFromBytes(t *testing.T) {
	img, err := LoadImageFromBytes(testPNG(t, 8, 6, color.RGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("LoadImageFromBytes: %v", err)
	}

	if img.Width != 8 || img.Height != 6 {
		t.Errorf("groesse = %dx%d, erwartet 8x6", img.Width, img.Height)
	}
	if img.Format != FormatPNG {
		t.Errorf("format = %q, erwartet png", img.Format)
	}
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bild.png")
	if err := os.WriteFile(path, testPNG(t, 4, 4, color.RGBA{G: 255, A: 255}), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Width != 4 || img.Height != 4 {
		t.Errorf("groesse = %dx%d, erwartet 4x4", img.Width, img.Height)
	}

	if _, err := LoadImage(filepath.Join(t.TempDir(), "fehlt.png")); err == nil {
		t.Fatal("erwarteter Fehler bei fehlender Datei blieb aus")
	}
}

func TestPrepareImage(t *testing.T) {
	img, err := LoadImageFromBytes(testPNG(t, 8, 8, color.RGBA{B: 255, A: 255}))
	if err != nil {
		t.Fatalf("LoadImageFromBytes: %v", err)
	}

	chw, shape, err := PrepareImage(img, 4)
	if err != nil {
		t.Fatalf("PrepareImage: %v", err)
	}
	if shape[1] != 4 || len(chw) != 3*4*4 {
		t.Fatalf("shape = %v, laenge = %d", shape, len(chw))
	}
}

func TestMimeType(t *testing.T) {
	cases := map[ImageFormat]string{
		FormatPNG:     "image/png",
		FormatJPEG:    "image/jpeg",
		FormatWebP:    "image/webp",
		FormatBMP:     "image/bmp",
		FormatTIFF:    "image/tiff",
		FormatUnknown: "application/octet-stream",
	}
	for format, want := range cases {
		if got := format.MimeType(); got != want {
			t.Errorf("MimeType(%s) = %q, erwartet %q", format, got, want)
		}
	}
}

func TestLoadImageUnbekanntesFormat(t *testing.T) {
	if _, err := LoadImageFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8}); err == nil {
		t.Fatal("erwarteter Fehler bei unbekanntem Format blieb aus")
	}
}

func TestNormalizeRGBLayout(t *testing.T) {
	// Rotes Bild: R-Ebene 1, G- und B-Ebene 0
	img, err := LoadImageFromBytes(testPNG(t, 2, 2, color.RGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("LoadImageFromBytes: %v", err)
	}

	chw := NormalizeRGB(img, NoNormMean, NoNormStd)
	if len(chw) != 12 {
		t.Fatalf("laenge = %d, erwartet 12", len(chw))
	}

	for i := 0; i < 4; i++ {
		if chw[i] != 1 {
			t.Errorf("r-ebene[%d] = %f, erwartet 1", i, chw[i])
		}
	}
	for i := 4; i < 12; i++ {
		if chw[i] != 0 {
			t.Errorf("g/b-ebene[%d] = %f, erwartet 0", i, chw[i])
		}
	}
}

func TestNormalizeRGBImageNet(t *testing.T) {
	img, err := LoadImageFromBytes(testPNG(t, 1, 1, color.RGBA{A: 255}))
	if err != nil {
		t.Fatalf("LoadImageFromBytes: %v", err)
	}

	chw := NormalizeRGB(img, ImageNetMean, ImageNetStd)

	// Schwarzer Pixel: (0 - mean) / std
	want := -ImageNetMean[0] / ImageNetStd[0]
	if diff := chw[0] - want; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("r = %f, erwartet %f", chw[0], want)
	}
}

func TestPrepareUndEncodeRoundTrip(t *testing.T) {
	src := testPNG(t, 16, 16, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	chw, shape, err := Prepare(src, 16)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if shape[0] != 3 || shape[1] != 16 || shape[2] != 16 {
		t.Fatalf("shape = %v, erwartet (3, 16, 16)", shape)
	}

	out, err := EncodePNG(chw, 16, 16)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	back, err := LoadImageFromBytes(out)
	if err != nil {
		t.Fatalf("round-trip dekodieren: %v", err)
	}

	r, g, b := extractRGB(back, 8, 8)
	for name, got := range map[string]float32{"r": r - 200.0/255, "g": g - 100.0/255, "b": b - 50.0/255} {
		if got > 0.01 || got < -0.01 {
			t.Errorf("%s weicht um %f ab", name, got)
		}
	}
}

func TestPrepareSkaliert(t *testing.T) {
	src := testPNG(t, 64, 32, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	chw, _, err := Prepare(src, 16)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(chw) != 3*16*16 {
		t.Fatalf("laenge = %d, erwartet %d", len(chw), 3*16*16)
	}
}

func TestFromCHWFalscheLaenge(t *testing.T) {
	if _, err := FromCHW(make([]float32, 10), 4, 4); err == nil {
		t.Fatal("erwarteter Fehler bei falscher Laenge blieb aus")
	}
}
