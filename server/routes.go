// Package server - HTTP-Server fuer die Bild-Restaurierung
//
// Dieses Paket stellt den HTTP-Server mit gin bereit.
//
// Hauptkomponenten:
// - Server: Haelt das geladene Modell und serialisiert Vorwaerts-Laeufe
// - GenerateRoutes: Baut den gin-Router mit CORS-Konfiguration auf
// - RestoreHandler: POST /api/restore, restauriert ein Bild
// - InfoHandler: GET /api/info, beschreibt das geladene Modell
// - Serve: Startet den Server auf einem Listener

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/priorml/priorformer/api"
	"github.com/priorml/priorformer/envconfig"
	"github.com/priorml/priorformer/logutil"
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/model"
	"github.com/priorml/priorformer/model/models/priorformer"
	"github.com/priorml/priorformer/version"
	"github.com/priorml/priorformer/vision"
)

// Server haelt das geladene Modell. mu serialisiert Vorwaerts-Laeufe,
// das CPU-Backend parallelisiert intern bereits ueber alle Kerne.
type Server struct {
	mu    sync.Mutex
	model model.Model
}

// NewServer erstellt einen Server fuer ein geladenes Modell
func NewServer(m model.Model) *Server {
	return &Server{model: m}
}

// handleError schreibt einen JSON-Fehlerkoerper. api.StatusError traegt
// seinen HTTP-Status selbst, alles andere wird zu 500.
func handleError(c *gin.Context, err error) {
	var status api.StatusError
	if errors.As(err, &status) {
		c.AbortWithStatusJSON(status.StatusCode, api.ErrorResponse{Error: status.Error()})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
}

func badRequest(msg string) api.StatusError {
	return api.StatusError{StatusCode: http.StatusBadRequest, ErrorMessage: msg}
}

// restoreInput liest das Eingabe-Bild und die Prior-Zeilen aus der
// Anfrage und bereitet den CHW-Tensor vor. Bild-Content-Types tragen
// die rohen Bytes im Koerper, alles andere wird als JSON
// (api.RestoreRequest) gelesen.
func restoreInput(c *gin.Context, size int) ([]float32, [][]float32, error) {
	if ct := c.ContentType(); strings.HasPrefix(ct, "image/") {
		img, err := vision.DecodeImage(c.Request.Body)
		if err != nil {
			return nil, nil, badRequest(err.Error())
		}
		if mt := img.Format.MimeType(); mt != ct {
			return nil, nil, badRequest(fmt.Sprintf("content type %s does not match detected format %s", ct, mt))
		}

		chw, _, err := vision.PrepareImage(img, size)
		if err != nil {
			return nil, nil, badRequest(err.Error())
		}
		return chw, nil, nil
	}

	var req api.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, nil, badRequest(err.Error())
	}
	if len(req.Image) == 0 {
		return nil, nil, badRequest("image is required")
	}

	chw, _, err := vision.Prepare(req.Image, size)
	if err != nil {
		return nil, nil, badRequest(err.Error())
	}

	return chw, req.Prior, nil
}

func (s *Server) RestoreHandler(c *gin.Context) {
	start := time.Now()

	tf, ok := s.model.(*priorformer.Transformer)
	if !ok {
		handleError(c, fmt.Errorf("loaded model does not support restoration"))
		return
	}
	opts := tf.Options()

	chw, priorRows, err := restoreInput(c, opts.MAE.ImageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.model.Backend().NewContext()
	defer ctx.Close()

	image := ctx.FromFloats(chw, 1, opts.InChannels, opts.MAE.ImageSize, opts.MAE.ImageSize)

	prior, err := priorTensor(ctx, priorRows, opts)
	if err != nil {
		handleError(c, err)
		return
	}

	out, err := model.Forward(ctx, s.model, image, prior)
	if err != nil {
		handleError(c, err)
		return
	}

	h, w := out.Dim(2), out.Dim(3)
	png, err := vision.EncodePNG(out.Floats(), h, w)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.RestoreResponse{
		Image:         png,
		Width:         w,
		Height:        h,
		TotalDuration: time.Since(start),
	})
}

// priorTensor baut aus den Anfrage-Zeilen den Prior-Tensor
// (1, tokens, kanaele). Ohne Zeilen bleibt der Prior nil und das
// Modell laeuft unkonditioniert.
func priorTensor(ctx ml.Context, rows [][]float32, opts priorformer.Options) (ml.Tensor, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tokens := opts.Group * opts.Group
	channels := opts.EmbedDim * 4

	if len(rows) != tokens {
		return nil, badRequest(fmt.Sprintf("prior has %d rows, expected %d", len(rows), tokens))
	}

	flat := make([]float32, 0, tokens*channels)
	for i, row := range rows {
		if len(row) != channels {
			return nil, badRequest(fmt.Sprintf("prior row %d has %d values, expected %d", i, len(row), channels))
		}
		flat = append(flat, row...)
	}

	return ctx.FromFloats(flat, 1, tokens, channels), nil
}

func (s *Server) InfoHandler(c *gin.Context) {
	resp := api.InfoResponse{
		Architecture: s.model.Backend().Config().Architecture(),
	}

	if tf, ok := s.model.(*priorformer.Transformer); ok {
		opts := tf.Options()
		resp.InputSize = opts.MAE.ImageSize
		resp.PriorTokens = opts.Group * opts.Group
		resp.PriorWidth = opts.EmbedDim * 4
	}

	tensors := model.Tensors(s.model)
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		shape := tensors[name].Shape()
		count := int64(1)
		for _, d := range shape {
			count *= int64(d)
		}
		resp.Parameters += count
		resp.Tensors = append(resp.Tensors, api.TensorInfo{Name: name, Shape: shape})
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "User-Agent", "Accept", "X-Requested-With"}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		requestIDMiddleware(),
	)

	r.POST("/api/restore", s.RestoreHandler)
	r.GET("/api/info", s.InfoHandler)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		r.Handle(method, "/", func(c *gin.Context) {
			c.String(http.StatusOK, "Priorformer is running")
		})
		r.Handle(method, "/api/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"version": version.Version})
		})
	}

	return r
}

// Serve startet den Server auf dem Listener und blockiert bis zum Ende
func Serve(ln net.Listener, m model.Model) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	s := NewServer(m)

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))

	srvr := &http.Server{
		Handler: s.GenerateRoutes(),
	}

	return srvr.Serve(ln)
}
