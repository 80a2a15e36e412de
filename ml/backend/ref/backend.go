// Package ref ist das Referenz-Backend: es zeichnet den Berechnungsgraphen
// auf, inferiert Formen zur Build-Zeit und wertet den Graphen auf der CPU aus.
//
// Beschleunigte Engines liegen ausserhalb dieses Moduls; ref dient als
// Beschreibung des Graphen und als Referenz fuer Tests.
package ref

import (
	"log/slog"

	"github.com/ollama/albert/ml"
)

// Backend erzeugt Kontexte fuer Graph-Aufzeichnung
type Backend struct {
	params ml.BackendParams
}

// New erstellt ein Referenz-Backend
func New(params ml.BackendParams) (ml.Backend, error) {
	slog.Debug("reference backend", "training", params.Training, "seed", params.Seed)
	return &Backend{params: params}, nil
}

// Name gibt den Namen des Backends zurueck
func (b *Backend) Name() string {
	return "ref"
}

// NewContext erstellt einen leeren Graph-Kontext
func (b *Backend) NewContext() ml.Context {
	return &Context{
		b:      b,
		inputs: make(map[string]*Tensor),
	}
}

// Close gibt das Backend frei
func (b *Backend) Close() {}

func init() {
	ml.RegisterBackend("ref", New)
}
