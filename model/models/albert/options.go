// Modul: options.go
// Beschreibung: Aus der Konfiguration abgeleitete Groessen fuer den Graphen
// Hauptstrukturen:
//   - Options: Dimensionen, Raten und Schalter fuer alle Bloecke
//   - groupIndex: Zuordnung logischer Layer zu Gewichtsgruppen

package albert

import (
	"log/slog"
	"math"

	"github.com/ollama/albert/model"
)

// Options enthaelt die Parameter, die die Bloecke beim Aufbau brauchen
type Options struct {
	hiddenSize,
	embeddingSize,
	numHeads,
	headDim int

	numLayers,
	numGroups,
	innerGroupNum,
	layersPerGroup int

	eps float32

	hiddenDropout,
	attentionDropout,
	classifierDropout float32

	act Activation

	outputHiddenStates,
	outputAttentions bool

	maxPositions int
	dims         model.Dims
}

func newOptions(c *Config) *Options {
	o := &Options{
		hiddenSize:         c.HiddenSize,
		embeddingSize:      c.EmbeddingSize,
		numHeads:           c.NumAttentionHeads,
		headDim:            c.HiddenSize / c.NumAttentionHeads,
		numLayers:          c.NumHiddenLayers,
		numGroups:          c.NumHiddenGroups,
		innerGroupNum:      c.InnerGroupNum,
		layersPerGroup:     c.LayersPerGroup(),
		eps:                c.LayerNormEps,
		hiddenDropout:      c.HiddenDropoutProb,
		attentionDropout:   c.AttentionProbsDropoutProb,
		classifierDropout:  c.ClassifierDropout(),
		act:                c.HiddenAct,
		outputHiddenStates: c.OutputHiddenStates,
		outputAttentions:   c.OutputAttentions,
		maxPositions:       c.MaxPositionEmbeddings,
		dims: model.Dims{
			"vocab_size":              c.VocabSize,
			"embedding_size":          c.EmbeddingSize,
			"hidden_size":             c.HiddenSize,
			"intermediate_size":       c.IntermediateSize,
			"max_position_embeddings": c.MaxPositionEmbeddings,
			"type_vocab_size":         c.TypeVocabSize,
			"num_labels":              c.NumLabels,
		},
	}

	if c.NumHiddenLayers%c.NumHiddenGroups != 0 {
		slog.Warn("num_hidden_layers is not divisible by num_hidden_groups, the last group covers the remaining layers",
			"num_hidden_layers", c.NumHiddenLayers, "num_hidden_groups", c.NumHiddenGroups)
	}

	return o
}

// groupIndex gibt die Gewichtsgruppe des logischen Layers i zurueck. Bei
// ungerader Teilung fallen die ueberzaehligen Layer in die letzte Gruppe.
func (o *Options) groupIndex(i int) int {
	return min(i/o.layersPerGroup, o.numGroups-1)
}

// kqScale ist der Skalierungsfaktor der Attention-Scores
func (o *Options) kqScale() float64 {
	return 1 / math.Sqrt(float64(o.headDim))
}
