// Modul: model.go
// Beschreibung: ALBERT Modell-Definition und Initialisierung
// Hauptstrukturen:
//   - Model: Konfiguration und abgeleitete Optionen eines ALBERT-Graphen
//   - New: Erstellt ein Modell aus GGUF-Metadaten
//   - Forward: Baut Embeddings, Encoder, Pooler und Kopf auf

package albert

import (
	"fmt"
	"log/slog"

	"github.com/ollama/albert/fs"
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/model"
	"github.com/ollama/albert/model/input"
)

// Model baut ALBERT-Graphen fuer eine Konfiguration. Die Gewichte entstehen
// bei jedem Forward in einem neuen Register.
type Model struct {
	model.Base

	config *Config
	*Options
}

// New erstellt ein Modell aus GGUF-Metadaten
func New(c fs.Config) (model.Model, error) {
	cfg, err := FromKV(c)
	if err != nil {
		return nil, err
	}

	m, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewModel erstellt ein Modell aus einer geprueften Konfiguration
func NewModel(cfg *Config) (*Model, error) {
	if cfg.PositionEmbeddingType != Absolute {
		return nil, &ConfigError{
			Field: "position_embedding_type",
			Value: cfg.PositionEmbeddingType.String(),
			Err:   fmt.Errorf("%w: only absolute position embeddings are built", ErrUnsupported),
		}
	}

	return &Model{config: cfg, Options: newOptions(cfg)}, nil
}

// Config gibt die Konfiguration des Modells zurueck
func (m *Model) Config() *Config {
	return m.config
}

// Forward baut den Graphen fuer batch auf
func (m *Model) Forward(ctx ml.Context, batch input.Batch) (*model.Outputs, error) {
	if m.config.Architecture == ForMultipleChoice && !batch.Flattened() {
		return nil, fmt.Errorf("%w: %s needs a flattened batch", ErrChoicesAxis, ForMultipleChoice)
	}

	r := m.NewRegistry(ctx, "albert", m.config.InitializerRange, m.config.Seed)

	var embeddings Embeddings
	if err := model.Populate(r, model.At("embeddings"), &embeddings, m.dims); err != nil {
		return nil, err
	}

	var encoder Encoder
	if err := model.Populate(r, model.At("encoder"), &encoder, m.dims); err != nil {
		return nil, err
	}

	hiddenStates := embeddings.Forward(ctx, batch.Inputs, m.Options)
	bias := attentionBias(ctx, batch.Inputs[input.AttentionMask])

	enc, err := encoder.Forward(ctx, r, hiddenStates, bias, m.Options)
	if err != nil {
		return nil, err
	}

	b := base{lastHiddenState: enc.lastHiddenState}
	if needsPooler(m.config.Architecture) {
		var pooler Pooler
		if err := model.Populate(r, model.At("pooler"), &pooler, m.dims); err != nil {
			return nil, err
		}
		b.pooled = pooler.Forward(ctx, enc.lastHiddenState, m.Options)
	}

	outputs := model.NewOutputs()
	if err := buildHead(ctx, r, m.config.Architecture, b, batch, m.Options, outputs); err != nil {
		return nil, err
	}
	outputs.SetSequences(enc.hiddenStates, enc.attentions)

	slog.Debug("albert graph", "architecture", m.config.Architecture, "weights", r.Len(), "parameters", r.ParameterCount())
	return outputs, nil
}

func init() {
	model.Register("albert", New)
}
