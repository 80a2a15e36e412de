// Modul: attention.go
// Beschreibung: Multi-Head Self-Attention eines inneren Layers
// Hauptstrukturen:
//   - Attention: Query/Key/Value-Projektionen, Ausgabe-Projektion, LayerNorm
//   - attentionBias: additive Maske aus attention_mask

package albert

import (
	"math"

	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
)

// Attention liegt unter ...albert_layers.{i}.attention
type Attention struct {
	Query  *nn.Linear    `gguf:"query" dims:"hidden_size,hidden_size"`
	Key    *nn.Linear    `gguf:"key" dims:"hidden_size,hidden_size"`
	Value  *nn.Linear    `gguf:"value" dims:"hidden_size,hidden_size"`
	Output *nn.Linear    `gguf:"dense" dims:"hidden_size,hidden_size"`
	Norm   *nn.LayerNorm `gguf:"LayerNorm" dims:"hidden_size"`
}

// Forward berechnet die Attention fuer hiddenStates (batch, seq, hidden).
// bias hat die Form (batch, 1, 1, seq). Zurueck kommen die normalisierte
// Ausgabe und die Attention-Wahrscheinlichkeiten (batch, heads, seq, seq)
// nach Dropout.
func (sa *Attention) Forward(ctx ml.Context, hiddenStates, bias ml.Tensor, opts *Options) (ml.Tensor, ml.Tensor) {
	seqLen := hiddenStates.Dim(1)

	heads := func(t ml.Tensor) ml.Tensor {
		t = t.Reshape(ctx, -1, seqLen, opts.numHeads, opts.headDim)
		return t.Permute(ctx, 0, 2, 1, 3)
	}

	query := heads(sa.Query.Forward(ctx, hiddenStates))
	key := heads(sa.Key.Forward(ctx, hiddenStates))
	value := heads(sa.Value.Forward(ctx, hiddenStates))

	kqv, probs := ml.ScaledDotProductAttention(ctx, query, key, value, bias, opts.kqScale(), opts.attentionDropout)
	kqv = kqv.Permute(ctx, 0, 2, 1, 3).Reshape(ctx, -1, seqLen, opts.hiddenSize)

	out := sa.Output.Forward(ctx, kqv).Dropout(ctx, opts.hiddenDropout)
	out = out.Add(ctx, hiddenStates)
	return sa.Norm.Forward(ctx, out, opts.eps), probs
}

// attentionBias wandelt mask (batch, seq) in den additiven Bias
// (batch, 1, 1, seq): -MaxFloat32 wo mask 0 ist, sonst 0. Jeder Wert
// ungleich 0 gilt als sichtbar.
func attentionBias(ctx ml.Context, mask ml.Tensor) ml.Tensor {
	bias := mask.Cast(ctx, ml.DTypeF32).Reshape(ctx, -1, 1, 1, mask.Dim(-1))
	bias = bias.Sqr(ctx).Step(ctx).Scale(ctx, math.MaxFloat32)
	return bias.Add(ctx, ctx.FromFloats([]float32{-math.MaxFloat32}, 1))
}
