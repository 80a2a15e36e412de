// Modul: heads.go
// Beschreibung: Pooler, LM-Kopf und die Ausgabekoepfe der acht Architekturen
// Hauptstrukturen:
//   - Pooler: erste Position -> Dense -> tanh
//   - LMHead: Dense -> Aktivierung -> LayerNorm -> Decoder (vocab_size)
//   - Classifier: Dropout + Dense fuer Klassifikationskoepfe
//   - buildHead: vollstaendige Zuordnung Architektur -> Kopf

package albert

import (
	"log/slog"

	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
	"github.com/ollama/albert/model"
	"github.com/ollama/albert/model/input"
)

// Pooler liegt unter albert.pooler
type Pooler struct {
	Dense *nn.Linear `gguf:"," dims:"hidden_size,hidden_size"`
}

// Forward nimmt die erste Position von lastHiddenState (batch, seq, hidden)
func (p *Pooler) Forward(ctx ml.Context, lastHiddenState ml.Tensor, opts *Options) ml.Tensor {
	first := lastHiddenState.Slice(ctx, 1, 0, 1, 1).Reshape(ctx, -1, opts.hiddenSize)
	return p.Dense.Forward(ctx, first).Tanh(ctx)
}

// LMHead liegt unter predictions. Der Decoder hat eigene Gewichte der
// Form (vocab_size, embedding_size) und ist nicht an word_embeddings gebunden.
type LMHead struct {
	Dense   *nn.Linear    `gguf:"dense" dims:"embedding_size,hidden_size"`
	Norm    *nn.LayerNorm `gguf:"LayerNorm" dims:"embedding_size"`
	Decoder *nn.Linear    `gguf:"decoder" dims:"vocab_size,embedding_size"`
}

func (h *LMHead) Forward(ctx ml.Context, hiddenStates ml.Tensor, opts *Options) ml.Tensor {
	t := h.Dense.Forward(ctx, hiddenStates)
	t = opts.act.Forward(ctx, t)
	t = h.Norm.Forward(ctx, t, opts.eps)
	return h.Decoder.Forward(ctx, t)
}

// Classifier ist eine Dense-Schicht mit vorgeschaltetem Dropout. Die
// Breite kommt aus dem dims-Tag des jeweiligen Kopfes.
type Classifier struct {
	Dense *nn.Linear `gguf:"," dims:"num_labels,hidden_size"`
}

func (c *Classifier) Forward(ctx ml.Context, t ml.Tensor, p float32) ml.Tensor {
	return c.Dense.Forward(ctx, t.Dropout(ctx, p))
}

// spanClassifier liefert start- und end-Logits
type spanClassifier struct {
	Dense *nn.Linear `gguf:"," dims:"2,hidden_size"`
}

// choiceClassifier bewertet jede Antwortoption mit einem Wert
type choiceClassifier struct {
	Dense *nn.Linear `gguf:"," dims:"1,hidden_size"`
}

// sopClassifier liegt unter sop_classifier und sagt die Satzreihenfolge voraus
type sopClassifier struct {
	Dense *nn.Linear `gguf:"classifier" dims:"2,hidden_size"`
}

// base sind die Ausgaben des gemeinsamen Rumpfs
type base struct {
	lastHiddenState ml.Tensor
	pooled          ml.Tensor
}

// buildHead haengt den Kopf der Architektur arch an und schreibt seine
// Ausgaben nach out. Jede Architektur hat genau einen Fall.
func buildHead(ctx ml.Context, r *model.Registry, arch Architecture, b base, batch input.Batch, opts *Options, out *model.Outputs) error {
	slog.Debug("build head", "architecture", arch)

	switch arch {
	case Base:
		out.Set(model.LastHiddenState, b.lastHiddenState)
		out.Set(model.PoolerOutput, b.pooled)
	case ForMaskedLM, ForCausalLM:
		var head LMHead
		if err := model.Populate(r, model.At("predictions"), &head, opts.dims); err != nil {
			return err
		}
		out.Set(model.Logits, head.Forward(ctx, b.lastHiddenState, opts))
	case ForSequenceClassification:
		var head Classifier
		if err := model.Populate(r, model.At("classifier"), &head, opts.dims); err != nil {
			return err
		}
		out.Set(model.Logits, head.Forward(ctx, b.pooled, opts.classifierDropout))
	case ForTokenClassification:
		var head Classifier
		if err := model.Populate(r, model.At("classifier"), &head, opts.dims); err != nil {
			return err
		}
		out.Set(model.Logits, head.Forward(ctx, b.lastHiddenState, opts.classifierDropout))
	case ForQuestionAnswering:
		var head spanClassifier
		if err := model.Populate(r, model.At("qa_outputs"), &head, opts.dims); err != nil {
			return err
		}

		seqLen := batch.SeqLen()
		logits := head.Dense.Forward(ctx, b.lastHiddenState).Chunk(ctx, -1, 1)
		out.Set(model.StartLogits, logits[0].Reshape(ctx, -1, seqLen))
		out.Set(model.EndLogits, logits[1].Reshape(ctx, -1, seqLen))
	case ForMultipleChoice:
		var head choiceClassifier
		if err := model.Populate(r, model.At("classifier"), &head, opts.dims); err != nil {
			return err
		}

		logits := head.Dense.Forward(ctx, b.pooled.Dropout(ctx, opts.classifierDropout))
		out.Set(model.Logits, logits.ReshapeLike(ctx, batch.Original, []int{0, 1}))
	case ForPreTraining:
		var lm LMHead
		if err := model.Populate(r, model.At("predictions"), &lm, opts.dims); err != nil {
			return err
		}

		var sop sopClassifier
		if err := model.Populate(r, model.At("sop_classifier"), &sop, opts.dims); err != nil {
			return err
		}

		out.Set(model.PredictionLogits, lm.Forward(ctx, b.lastHiddenState, opts))
		out.Set(model.SOPLogits, sop.Dense.Forward(ctx, b.pooled.Dropout(ctx, opts.classifierDropout)))
	default:
		return &ConfigError{Field: "architecture", Value: int(arch), Err: ErrUnknownArchitecture}
	}

	return nil
}

// needsPooler ist falsch fuer Koepfe, die nur die letzte Schicht lesen
func needsPooler(arch Architecture) bool {
	switch arch {
	case ForMaskedLM, ForCausalLM, ForTokenClassification, ForQuestionAnswering:
		return false
	default:
		return true
	}
}
