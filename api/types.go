// types.go - API-Typen des Restaurierungs-Servers
// Enthaelt: StatusError, RestoreRequest/Response, InfoResponse
package api

import (
	"fmt"
	"time"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the server logs for details"
	}
}

// RestoreRequest ist die Anfrage an POST /api/restore. Image traegt die
// rohen Bild-Bytes (JSON kodiert sie als base64). Prior ist das optionale
// Konditionierungs-Embedding, eine Zeile pro Token.
type RestoreRequest struct {
	Image []byte      `json:"image"`
	Prior [][]float32 `json:"prior,omitempty"`
}

// RestoreResponse ist die Antwort: das restaurierte Bild als PNG
type RestoreResponse struct {
	Image  []byte `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	TotalDuration time.Duration `json:"total_duration"`
}

// TensorInfo beschreibt einen Gewichts-Tensor des geladenen Modells
type TensorInfo struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

// InfoResponse beschreibt das geladene Modell
type InfoResponse struct {
	Architecture string       `json:"architecture"`
	Parameters   int64        `json:"parameters"`
	InputSize    int          `json:"input_size"`
	PriorTokens  int          `json:"prior_tokens"`
	PriorWidth   int          `json:"prior_width"`
	Tensors      []TensorInfo `json:"tensors,omitempty"`
}

// ErrorResponse ist der JSON-Fehlerkoerper aller Endpunkte
type ErrorResponse struct {
	Error string `json:"error"`
}
