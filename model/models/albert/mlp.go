// Modul: mlp.go
// Beschreibung: Feed-Forward-Block eines inneren Layers
// Hauptstrukturen:
//   - FeedForward: ffn -> Aktivierung -> ffn_output, Residual und LayerNorm

package albert

import (
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
)

// FeedForward liegt direkt unter ...albert_layers.{i}
type FeedForward struct {
	Up   *nn.Linear    `gguf:"ffn" dims:"intermediate_size,hidden_size"`
	Down *nn.Linear    `gguf:"ffn_output" dims:"hidden_size,intermediate_size"`
	Norm *nn.LayerNorm `gguf:"full_layer_layer_norm" dims:"hidden_size"`
}

func (mlp *FeedForward) Forward(ctx ml.Context, hiddenStates ml.Tensor, opts *Options) ml.Tensor {
	t := mlp.Up.Forward(ctx, hiddenStates)
	t = opts.act.Forward(ctx, t)
	t = mlp.Down.Forward(ctx, t).Dropout(ctx, opts.hiddenDropout)
	t = t.Add(ctx, hiddenStates)
	return mlp.Norm.Forward(ctx, t, opts.eps)
}
