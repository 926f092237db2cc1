// routes_test.go - Tests fuer Router, Restore- und Info-Endpunkt
package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priorml/priorformer/api"
	"github.com/priorml/priorformer/fs"
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/backend/cpu"
	"github.com/priorml/priorformer/model"
	_ "github.com/priorml/priorformer/model/models/priorformer"
)

// testConfig beschreibt eine kleine Architektur fuer schnelle Tests
func testConfig() fs.Config {
	return fs.NewConfig(map[string]any{
		"architecture": "priorformer",
		"dim":          float64(8),
		"embed_dim":    float64(8),
		"group":        float64(4),
		"num_blocks":   []any{float64(1), float64(1), float64(1), float64(1)},
		"heads":        []any{float64(1), float64(2), float64(4), float64(8)},
		"mae": map[string]any{
			"image_size": float64(32),
			"patch_size": float64(16),
			"embed_dim":  float64(8),
			"depth":      float64(1),
			"heads":      float64(2),
		},
	})
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := cpu.NewFromStore(testConfig(), nil, ml.BackendParams{NumThreads: 1, Seed: 7})
	m, err := model.NewFromBackend(b)
	require.NoError(t, err, "modell aufbauen")

	return NewServer(m).GenerateRoutes()
}

// testPNG erzeugt ein einfarbiges PNG im Speicher
func testPNG(t *testing.T, size int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "png kodieren")
	return buf.Bytes()
}

func TestRootUndVersion(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Priorformer is running", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "version")
}

func TestRestore(t *testing.T) {
	r := newTestRouter(t)

	body, err := json.Marshal(api.RestoreRequest{Image: testPNG(t, 32)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "antwort: %s", w.Body.String())

	var resp api.RestoreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 32, resp.Width)
	assert.Equal(t, 32, resp.Height)
	assert.Greater(t, resp.TotalDuration, time.Duration(0))

	img, err := png.Decode(bytes.NewReader(resp.Image))
	require.NoError(t, err, "ausgabe muss gueltiges png sein")
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestRestoreMitPrior(t *testing.T) {
	r := newTestRouter(t)

	prior := make([][]float32, 16)
	for i := range prior {
		prior[i] = make([]float32, 32)
	}

	body, err := json.Marshal(api.RestoreRequest{Image: testPNG(t, 32), Prior: prior})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "antwort: %s", w.Body.String())
}

func TestRestoreFehlendesBild(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "image is required", resp.Error)
}

func TestRestoreRoheBildBytes(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(testPNG(t, 32)))
	req.Header.Set("Content-Type", "image/png")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "antwort: %s", w.Body.String())

	var resp api.RestoreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 32, resp.Width)
}

func TestRestoreContentTypePasstNicht(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(testPNG(t, 32)))
	req.Header.Set("Content-Type", "image/jpeg")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "image/png")
}

func TestRestoreFalscherPrior(t *testing.T) {
	r := newTestRouter(t)

	body, err := json.Marshal(api.RestoreRequest{
		Image: testPNG(t, 32),
		Prior: [][]float32{{1, 2, 3}},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInfo(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "priorformer", resp.Architecture)
	assert.Equal(t, 32, resp.InputSize)
	assert.Equal(t, 16, resp.PriorTokens)
	assert.Equal(t, 32, resp.PriorWidth)
	assert.Greater(t, resp.Parameters, int64(0))
	assert.NotEmpty(t, resp.Tensors)
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/restore", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
}
