// Modul: kv.go
// Beschreibung: Abbildung der Konfiguration auf GGUF-Metadaten und zurueck
// Hauptstrukturen:
//   - FromKV: Konfiguration aus fs.Config lesen
//   - Config.KV: Konfiguration als ggml.KV schreiben

package albert

import (
	"fmt"

	"github.com/ollama/albert/fs"
	"github.com/ollama/albert/fs/ggml"
)

// FromKV liest die Konfiguration aus GGUF-Metadaten. Fehlende Schluessel
// behalten ihre Defaults.
func FromKV(c fs.Config) (*Config, error) {
	if arch := c.Architecture(); arch != "albert" {
		return nil, &ConfigError{Field: "general.architecture", Value: arch, Err: ErrUnsupported}
	}

	d := defaultConfig()
	overrides := map[string]any{
		"architecture":                 c.String("variant", d.Architecture.String()),
		"vocab_size":                   int(c.Uint("vocab_size", uint32(d.VocabSize))),
		"embedding_size":               int(c.Uint("token_embedding_length", uint32(d.EmbeddingSize))),
		"hidden_size":                  int(c.Uint("embedding_length", uint32(d.HiddenSize))),
		"num_hidden_layers":            int(c.Uint("block_count", uint32(d.NumHiddenLayers))),
		"num_hidden_groups":            int(c.Uint("group_count", uint32(d.NumHiddenGroups))),
		"num_attention_heads":          int(c.Uint("attention.head_count", uint32(d.NumAttentionHeads))),
		"intermediate_size":            int(c.Uint("feed_forward_length", uint32(d.IntermediateSize))),
		"inner_group_num":              int(c.Uint("inner_group_count", uint32(d.InnerGroupNum))),
		"hidden_act":                   c.String("hidden_act", d.HiddenAct.String()),
		"hidden_dropout_prob":          c.Float("hidden_dropout", d.HiddenDropoutProb),
		"attention_probs_dropout_prob": c.Float("attention.dropout", d.AttentionProbsDropoutProb),
		"max_position_embeddings":      int(c.Uint("context_length", uint32(d.MaxPositionEmbeddings))),
		"type_vocab_size":              int(c.Uint("type_vocab_size", uint32(d.TypeVocabSize))),
		"initializer_range":            c.Float("initializer_range", d.InitializerRange),
		"layer_norm_eps":               c.Float("attention.layer_norm_epsilon", d.LayerNormEps),
		"position_embedding_type":      c.String("position_embedding_type", d.PositionEmbeddingType.String()),
		"output_hidden_states":         c.Bool("output_hidden_states"),
		"output_attentions":            c.Bool("output_attentions"),
		"pad_token_id":                 int(c.Uint("tokenizer.pad_token_id", uint32(d.PadTokenID))),
		"bos_token_id":                 int(c.Uint("tokenizer.bos_token_id", uint32(d.BOSTokenID))),
		"eos_token_id":                 int(c.Uint("tokenizer.eos_token_id", uint32(d.EOSTokenID))),
		"strict_groups":                c.Bool("strict_groups", d.StrictGroups),
	}

	if v := c.Value("albert.classifier_dropout"); v != nil {
		overrides["classifier_dropout_prob"] = v
	}

	if labels := c.Strings("labels"); len(labels) > 0 {
		id2label := make(map[int]string, len(labels))
		for i, label := range labels {
			id2label[i] = label
		}
		overrides["id2label"] = id2label
	} else {
		overrides["num_labels"] = int(c.Uint("num_labels", uint32(d.NumLabels)))
	}

	switch v := c.Value("albert.seed").(type) {
	case nil:
	case uint64:
		overrides["seed"] = v
	default:
		return nil, &ConfigError{Field: "albert.seed", Value: v, Err: ErrTypeMismatch}
	}

	cfg, err := Configure(overrides)
	if err != nil {
		return nil, fmt.Errorf("albert metadata: %w", err)
	}
	return cfg, nil
}

// KV gibt die Konfiguration als GGUF-Metadaten zurueck. FromKV(c.KV())
// ergibt eine gleiche Konfiguration.
func (c *Config) KV() ggml.KV {
	kv := ggml.KV{
		"general.architecture":                "albert",
		"general.name":                        "albert-" + c.Architecture.String(),
		"albert.variant":                      c.Architecture.String(),
		"albert.vocab_size":                   uint32(c.VocabSize),
		"albert.token_embedding_length":       uint32(c.EmbeddingSize),
		"albert.embedding_length":             uint32(c.HiddenSize),
		"albert.block_count":                  uint32(c.NumHiddenLayers),
		"albert.group_count":                  uint32(c.NumHiddenGroups),
		"albert.attention.head_count":         uint32(c.NumAttentionHeads),
		"albert.feed_forward_length":          uint32(c.IntermediateSize),
		"albert.inner_group_count":            uint32(c.InnerGroupNum),
		"albert.hidden_act":                   c.HiddenAct.String(),
		"albert.hidden_dropout":               c.HiddenDropoutProb,
		"albert.attention.dropout":            c.AttentionProbsDropoutProb,
		"albert.context_length":               uint32(c.MaxPositionEmbeddings),
		"albert.type_vocab_size":              uint32(c.TypeVocabSize),
		"albert.initializer_range":            c.InitializerRange,
		"albert.attention.layer_norm_epsilon": c.LayerNormEps,
		"albert.position_embedding_type":      c.PositionEmbeddingType.String(),
		"albert.num_labels":                   uint32(c.NumLabels),
		"albert.labels":                       c.Labels(),
		"albert.output_hidden_states":         c.OutputHiddenStates,
		"albert.output_attentions":            c.OutputAttentions,
		"albert.tokenizer.pad_token_id":       uint32(c.PadTokenID),
		"albert.tokenizer.bos_token_id":       uint32(c.BOSTokenID),
		"albert.tokenizer.eos_token_id":       uint32(c.EOSTokenID),
		"albert.strict_groups":                c.StrictGroups,
		"albert.seed":                         c.Seed,
	}

	if c.ClassifierDropoutProb != nil {
		kv["albert.classifier_dropout"] = *c.ClassifierDropoutProb
	}

	return kv
}
