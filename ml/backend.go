// backend.go - Backend-Interface und Registrierung fuer ML-Modelle
// Dieses Modul definiert das Backend-Interface und die Backend-Factory-Funktionen.
package ml

import (
	"fmt"

	"github.com/priorml/priorformer/fs"
)

// Backend repraesentiert ein Ausfuehrungs-Backend fuer Modelle (z.B. CPU).
type Backend interface {
	// Close gibt alle Ressourcen des Backends frei
	Close()

	// Config gibt die Modell-Metadaten zurueck
	Config() fs.Config

	// Get gibt einen benannten Gewichts-Tensor zurueck (nil wenn nicht vorhanden)
	Get(name string) Tensor

	// NewContext erstellt einen neuen Rechen-Kontext
	NewContext() Context
}

// BackendParams steuert, wie das Backend Modelle laedt und ausfuehrt
type BackendParams struct {
	// NumThreads setzt die Worker-Anzahl fuer parallele Kernel.
	// 0 bedeutet: Anzahl der logischen CPUs.
	NumThreads int

	// Seed initialisiert den Zufallsgenerator fuer die Gewichts-Initialisierung.
	// Konstruierte Module ohne geladene Gewichte bleiben damit reproduzierbar.
	Seed int64
}

var backends = make(map[string]func(string, BackendParams) (Backend, error))

// RegisterBackend registriert eine Backend-Factory-Funktion.
func RegisterBackend(name string, f func(string, BackendParams) (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// NewBackend erstellt eine neue Backend-Instanz fuer das angegebene
// Modell-Verzeichnis. Ein leerer Pfad erzeugt ein Backend ohne Gewichte
// (alle Module behalten ihre Konstruktor-Initialisierung).
func NewBackend(modelPath string, params BackendParams) (Backend, error) {
	if backend, ok := backends["cpu"]; ok {
		return backend(modelPath, params)
	}

	return nil, fmt.Errorf("unsupported backend")
}
