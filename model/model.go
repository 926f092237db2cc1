// Package model - Model-Interface und Initialisierung
//
// Dieses Paket definiert das Model-Interface und stellt Funktionen
// zur Initialisierung und Verwaltung der Restaurierungs-Modelle bereit.
//
// Hauptkomponenten:
// - Model: Interface fuer alle Modell-Architekturen
// - Base: Basis-Implementierung fuer gemeinsame Funktionalitaet
// - New: Erstellt neue Model-Instanzen aus einem Modell-Verzeichnis
// - Register: Registriert Modell-Konstruktoren
// - Forward: Fuehrt den Vorwaerts-Pass mit Eingabe-Pruefung durch

package model

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/priorml/priorformer/fs"
	"github.com/priorml/priorformer/ml"
	_ "github.com/priorml/priorformer/ml/backend"
)

// Fehler-Definitionen
var (
	ErrUnsupportedModel = errors.New("model not supported")
	ErrNoImage          = errors.New("an input image is required")
)

// Model definiert das Interface fuer spezifische Modell-Architekturen.
// prior darf nil sein; dann laeuft das Modell ohne Konditionierung.
type Model interface {
	Forward(ctx ml.Context, image, prior ml.Tensor) (ml.Tensor, error)

	Backend() ml.Backend
}

// Validator ist ein optionales Interface fuer Post-Load-Validierung
type Validator interface {
	Validate() error
}

// Base implementiert gemeinsame Felder und Methoden fuer alle Modelle
type Base struct {
	b ml.Backend
}

// Backend gibt das Backend zurueck, das das Modell ausfuehrt
func (m *Base) Backend() ml.Backend {
	return m.b
}

// models speichert registrierte Modell-Konstruktoren. Konstruktoren
// initialisieren alle Parameter zufaellig; gespeicherte Gewichte werden
// anschliessend per Reflection darueber gelegt.
var models = make(map[string]func(ml.Context, fs.Config) (Model, error))

// Register registriert einen Modell-Konstruktor fuer eine Architektur
func Register(name string, f func(ml.Context, fs.Config) (Model, error)) {
	if _, ok := models[name]; ok {
		panic("model: model already registered")
	}

	models[name] = f
}

// New initialisiert eine neue Model-Instanz aus einem Modell-Verzeichnis
func New(modelPath string, params ml.BackendParams) (Model, error) {
	b, err := ml.NewBackend(modelPath, params)
	if err != nil {
		return nil, err
	}

	return NewFromBackend(b)
}

// NewFromBackend baut das Modell fuer die Architektur des Backends auf
// und befuellt es mit den dort hinterlegten Tensoren. Fehlende Tensoren
// behalten ihre Konstruktor-Initialisierung.
func NewFromBackend(b ml.Backend) (Model, error) {
	c := b.Config()

	f, ok := models[c.Architecture()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, c.Architecture())
	}

	ctx := b.NewContext()
	defer ctx.Close()

	m, err := f(ctx, c)
	if err != nil {
		return nil, err
	}

	base := Base{b: b}
	populateFields(base, reflect.ValueOf(m).Elem())

	if validator, ok := m.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Forward fuehrt einen Vorwaerts-Pass durch das Modell aus
func Forward(ctx ml.Context, m Model, image, prior ml.Tensor) (ml.Tensor, error) {
	if image == nil {
		return nil, ErrNoImage
	}

	if image.Dim(0) < 1 {
		return nil, errors.New("batch size cannot be less than 1")
	}

	if prior != nil && prior.Dim(0) != image.Dim(0) {
		return nil, fmt.Errorf("prior batch (%d) must match image batch (%d)", prior.Dim(0), image.Dim(0))
	}

	return m.Forward(ctx, image, prior)
}
