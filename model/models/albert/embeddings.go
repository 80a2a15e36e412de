// Modul: embeddings.go
// Beschreibung: Wort-, Positions- und Segment-Embeddings in embedding_size
// Hauptstrukturen:
//   - Embeddings: die drei Lookup-Tabellen mit LayerNorm

package albert

import (
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
	"github.com/ollama/albert/model/input"
)

// Embeddings liegt unter albert.embeddings
type Embeddings struct {
	Word      *nn.Embedding `gguf:"word_embeddings" dims:"vocab_size,embedding_size"`
	Position  *nn.Embedding `gguf:"position_embeddings" dims:"max_position_embeddings,embedding_size"`
	TokenType *nn.Embedding `gguf:"token_type_embeddings" dims:"type_vocab_size,embedding_size"`
	Norm      *nn.LayerNorm `gguf:"LayerNorm" dims:"embedding_size"`
}

// Forward summiert die drei Lookups und normalisiert. Die Ausgabe hat
// die Form (batch, seq, embedding_size).
func (e *Embeddings) Forward(ctx ml.Context, inputs map[string]ml.Tensor, opts *Options) ml.Tensor {
	hiddenStates := e.Word.Forward(ctx, inputs[input.InputIDs])
	hiddenStates = hiddenStates.Add(ctx, e.Position.Forward(ctx, inputs[input.PositionIDs]))
	hiddenStates = hiddenStates.Add(ctx, e.TokenType.Forward(ctx, inputs[input.TokenTypeIDs]))
	hiddenStates = e.Norm.Forward(ctx, hiddenStates, opts.eps)
	return hiddenStates.Dropout(ctx, opts.hiddenDropout)
}
