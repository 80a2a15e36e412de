// Package model - Model-Interface und Initialisierung
//
// Dieses Paket definiert das Model-Interface und stellt Funktionen
// zum Erstellen von Modellen und zum Aufbau ihrer Graphen bereit.
//
// Hauptkomponenten:
// - Model: Interface für alle Modell-Architekturen
// - Base: Basis-Implementierung mit dem Gewichtsregister
// - New: Erstellt neue Model-Instanzen aus Metadaten
// - Register: Registriert Modell-Konstruktoren
// - Forward: Baut den Graphen eines Modells auf

package model

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/ollama/albert/fs"
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/model/input"
)

// Fehler-Definitionen
var (
	ErrUnsupportedModel = errors.New("model not supported")
	ErrNoInputs         = errors.New("batch has no inputs")
)

// Model definiert das Interface für spezifische Modell-Architekturen
type Model interface {
	// Forward baut den Graphen für batch in ctx auf. Gewichte werden
	// dabei über das Register des Modells angelegt.
	Forward(ml.Context, input.Batch) (*Outputs, error)

	// Registry gibt das Register des zuletzt aufgebauten Graphen zurück
	Registry() *Registry
}

// Base implementiert gemeinsame Felder und Methoden für alle Modelle
type Base struct {
	registry *Registry
}

// Registry gibt das Gewichtsregister zurück
func (m *Base) Registry() *Registry {
	return m.registry
}

// NewRegistry erstellt das Register für einen neuen Graphen in ctx
func (m *Base) NewRegistry(ctx ml.Context, prefix string, std float32, seed uint64) *Registry {
	m.registry = NewRegistry(ctx, prefix, std, seed)
	return m.registry
}

// models speichert registrierte Modell-Konstruktoren
var models = make(map[string]func(fs.Config) (Model, error))

// Register registriert einen Modell-Konstruktor für eine Architektur
func Register(name string, f func(fs.Config) (Model, error)) {
	if _, ok := models[name]; ok {
		panic("model: model already registered")
	}

	models[name] = f
}

// Architectures gibt die registrierten Architekturen sortiert zurück
func Architectures() []string {
	return slices.Sorted(maps.Keys(models))
}

// New erstellt eine Model-Instanz anhand von general.architecture
func New(c fs.Config) (Model, error) {
	arch := c.Architecture()
	f, ok := models[arch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, arch)
	}

	slog.Debug("new model", "architecture", arch)
	return f(c)
}

// Forward baut den Graphen auf und markiert alle Ausgaben im Kontext
func Forward(ctx ml.Context, m Model, batch input.Batch) (*Outputs, error) {
	if len(batch.Inputs) < 1 {
		return nil, ErrNoInputs
	}

	outputs, err := m.Forward(ctx, batch)
	if err != nil {
		return nil, err
	}

	ctx.Forward(outputs.All()...)
	return outputs, nil
}
