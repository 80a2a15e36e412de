// Modul: encoder.go
// Beschreibung: Encoder mit gruppierten, geteilten Layern
// Hauptstrukturen:
//   - Encoder: Projektion embedding_size -> hidden_size und die logischen Layer
//   - Layer: ein innerer Layer (Attention + Feed-Forward)
//
// Logische Layer derselben Gruppe fordern ihre Gewichte unter derselben
// Adresse an und teilen sich damit die Tensoren im Register.

package albert

import (
	"log/slog"

	"github.com/ollama/albert/logutil"
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
	"github.com/ollama/albert/model"
)

// Encoder liegt unter albert.encoder
type Encoder struct {
	MappingIn *nn.Linear `gguf:"embedding_hidden_mapping_in" dims:"hidden_size,embedding_size"`
}

// Layer liegt unter albert.encoder.albert_layer_groups.{g}.albert_layers.{i}
type Layer struct {
	Attention    *Attention `gguf:"attention"`
	*FeedForward `gguf:","`
}

// Forward fuehrt Attention und Feed-Forward aus
func (l *Layer) Forward(ctx ml.Context, hiddenStates, bias ml.Tensor, opts *Options) (ml.Tensor, ml.Tensor) {
	hiddenStates, probs := l.Attention.Forward(ctx, hiddenStates, bias, opts)
	return l.FeedForward.Forward(ctx, hiddenStates, opts), probs
}

// encoderOutput ist das Ergebnis des Encoders
type encoderOutput struct {
	lastHiddenState ml.Tensor
	hiddenStates    []ml.Tensor
	attentions      []ml.Tensor
}

// Forward projiziert embeddings nach hidden_size und fuehrt die
// num_hidden_layers logischen Layer aus. Layer i nutzt die Gewichte der
// Gruppe groupIndex(i); jede Gruppe besteht aus inner_group_num Layern.
func (e *Encoder) Forward(ctx ml.Context, r *model.Registry, embeddings, bias ml.Tensor, opts *Options) (*encoderOutput, error) {
	hiddenStates := e.MappingIn.Forward(ctx, embeddings)

	var out encoderOutput
	if opts.outputHiddenStates {
		out.hiddenStates = append(out.hiddenStates, hiddenStates)
	}

	for i := range opts.numLayers {
		g := opts.groupIndex(i)
		for j := range opts.innerGroupNum {
			var layer Layer
			if err := model.Populate(r, model.InGroup("encoder", g, j), &layer, opts.dims); err != nil {
				return nil, err
			}

			var probs ml.Tensor
			hiddenStates, probs = layer.Forward(ctx, hiddenStates, bias, opts)
			if opts.outputAttentions {
				out.attentions = append(out.attentions, probs)
			}
		}

		logutil.Trace("encoder layer", "layer", i, "group", g)
		if opts.outputHiddenStates {
			out.hiddenStates = append(out.hiddenStates, hiddenStates)
		}
	}

	slog.Debug("encoder", "layers", opts.numLayers, "groups", opts.numGroups, "inner_group_num", opts.innerGroupNum,
		"weights", r.Len(), "reused", r.Hits())

	out.lastHiddenState = hiddenStates
	return &out, nil
}
