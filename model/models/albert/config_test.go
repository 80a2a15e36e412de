package albert

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/albert/fs/ggml"
)

func TestConfigIgnoresEnvironment(t *testing.T) {
	t.Setenv("ALBERT_SEED", "9")
	t.Setenv("ALBERT_STRICT_GROUPS", "1")

	c, err := Configure(map[string]any{"num_hidden_layers": 5, "num_hidden_groups": 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), c.Seed)
	assert.False(t, c.StrictGroups)
}

func TestConfigDefaults(t *testing.T) {
	c, err := Configure(nil)
	require.NoError(t, err)

	assert.Equal(t, Base, c.Architecture)
	assert.Equal(t, 30000, c.VocabSize)
	assert.Equal(t, 128, c.EmbeddingSize)
	assert.Equal(t, 4096, c.HiddenSize)
	assert.Equal(t, 12, c.NumHiddenLayers)
	assert.Equal(t, 1, c.NumHiddenGroups)
	assert.Equal(t, 64, c.NumAttentionHeads)
	assert.Equal(t, 16384, c.IntermediateSize)
	assert.Equal(t, 1, c.InnerGroupNum)
	assert.Equal(t, GELUNew, c.HiddenAct)
	assert.Equal(t, 512, c.MaxPositionEmbeddings)
	assert.Equal(t, 2, c.TypeVocabSize)
	assert.InDelta(t, 0.02, c.InitializerRange, 1e-9)
	assert.InDelta(t, 1e-12, c.LayerNormEps, 1e-18)
	assert.Equal(t, Absolute, c.PositionEmbeddingType)
	assert.Nil(t, c.ClassifierDropoutProb)

	assert.Equal(t, 2, c.NumLabels)
	assert.Equal(t, map[int]string{0: "LABEL_0", 1: "LABEL_1"}, c.ID2Label)
	assert.Equal(t, map[string]int{"LABEL_0": 0, "LABEL_1": 1}, c.Label2ID)
}

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(`{"hidden_act": "gelu", "num_hidden_layers": 4}`))
	require.NoError(t, err)

	want := defaultConfig()
	want.HiddenAct = GELU
	want.NumHiddenLayers = 4
	require.NoError(t, want.derive(false))

	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Konfiguration stimmt nicht (-erwartet +bekommen):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"architectures": ["AlbertForMaskedLM"],
		"model_type": "albert",
		"attention_probs_dropout_prob": 0.1,
		"classifier_dropout_prob": 0.1,
		"down_scale_factor": 1,
		"embedding_size": 128,
		"hidden_act": "gelu_new",
		"hidden_size": 768,
		"intermediate_size": 3072,
		"num_attention_heads": 12,
		"num_hidden_layers": 12,
		"num_hidden_groups": 1,
		"inner_group_num": 1,
		"vocab_size": 30000,
		"pad_token_id": 0,
		"bos_token_id": 2,
		"eos_token_id": 3
	}`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ForMaskedLM, c.Architecture)
	assert.Equal(t, 768, c.HiddenSize)
	assert.InDelta(t, 0.1, c.AttentionProbsDropoutProb, 1e-7)
	require.NotNil(t, c.ClassifierDropoutProb)
	assert.InDelta(t, 0.1, c.ClassifierDropout(), 1e-7)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(strings.NewReader(`{"vocab_size": `))
	assert.Error(t, err)
}

func TestConfigErrors(t *testing.T) {
	cases := []struct {
		name       string
		overrides  map[string]any
		field      string
		err        error
		suggestion string
	}{
		{"unknown field", map[string]any{"hiden_act": "gelu"}, "hiden_act", ErrUnknownField, "hidden_act"},
		{"type mismatch", map[string]any{"vocab_size": "big"}, "vocab_size", ErrTypeMismatch, ""},
		{"fractional int", map[string]any{"hidden_size": 7.5}, "hidden_size", ErrTypeMismatch, ""},
		{"bool mismatch", map[string]any{"output_attentions": 1}, "output_attentions", ErrTypeMismatch, ""},
		{"unknown activation", map[string]any{"hidden_act": "gelu2"}, "hidden_act", ErrUnknownValue, "gelu"},
		{"unknown position type", map[string]any{"position_embedding_type": "rotary"}, "position_embedding_type", ErrUnknownValue, ""},
		{"unknown architecture", map[string]any{"architecture": "for_masked"}, "architecture", ErrUnknownArchitecture, "for_masked_lm"},
		{"unknown hf class", map[string]any{"architectures": []any{"BertModel"}}, "architecture", ErrUnknownArchitecture, ""},
		{"other model type", map[string]any{"model_type": "bert"}, "model_type", ErrUnsupported, ""},
		{"zero size", map[string]any{"vocab_size": 0}, "vocab_size", ErrInvalidValue, ""},
		{"heads", map[string]any{"hidden_size": 10, "num_attention_heads": 3}, "hidden_size", ErrInvalidValue, ""},
		{"groups", map[string]any{"num_hidden_layers": 2, "num_hidden_groups": 3}, "num_hidden_groups", ErrInvalidValue, ""},
		{"strict groups", map[string]any{"num_hidden_layers": 5, "num_hidden_groups": 2, "strict_groups": true}, "num_hidden_layers", ErrInvalidValue, ""},
		{"dropout", map[string]any{"hidden_dropout_prob": 1.0}, "hidden_dropout_prob", ErrInvalidValue, ""},
		{"classifier dropout", map[string]any{"classifier_dropout_prob": -0.5}, "classifier_dropout_prob", ErrInvalidValue, ""},
		{"eps", map[string]any{"layer_norm_eps": 0.0}, "layer_norm_eps", ErrInvalidValue, ""},
		{"labels", map[string]any{"num_labels": 3, "id2label": map[string]any{"0": "a", "1": "b"}}, "num_labels", ErrInvalidValue, ""},
		{"null size", map[string]any{"num_hidden_layers": nil}, "num_hidden_layers", ErrTypeMismatch, ""},
		{"null activation", map[string]any{"hidden_act": nil}, "hidden_act", ErrTypeMismatch, ""},
		{"null labels", map[string]any{"id2label": nil}, "id2label", ErrTypeMismatch, ""},
		{"sparse labels", map[string]any{"id2label": map[string]any{"0": "neg", "2": "pos"}}, "id2label", ErrInvalidValue, ""},
		{"negative label id", map[string]any{"id2label": map[int]string{-1: "neg", 0: "pos"}}, "id2label", ErrInvalidValue, ""},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Configure(tt.overrides)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "erwartet *ConfigError, bekommen %T", err)
			assert.Equal(t, tt.field, cerr.Field)
			if tt.suggestion != "" {
				assert.Equal(t, tt.suggestion, cerr.Suggestion)
				assert.Contains(t, err.Error(), "did you mean")
			}
		})
	}
}

func TestUnevenGroups(t *testing.T) {
	c, err := Configure(map[string]any{"num_hidden_layers": 5, "num_hidden_groups": 2, "strict_groups": false})
	require.NoError(t, err)
	assert.Equal(t, 2, c.LayersPerGroup())

	opts := newOptions(c)
	var groups []int
	for i := range c.NumHiddenLayers {
		groups = append(groups, opts.groupIndex(i))
	}
	assert.Equal(t, []int{0, 0, 1, 1, 1}, groups)
}

func TestDerivedLabels(t *testing.T) {
	c, err := Load(strings.NewReader(`{"id2label": {"0": "neg", "1": "neu", "2": "pos"}}`))
	require.NoError(t, err)

	assert.Equal(t, 3, c.NumLabels)
	assert.Equal(t, map[string]int{"neg": 0, "neu": 1, "pos": 2}, c.Label2ID)
	assert.Equal(t, []string{"neg", "neu", "pos"}, c.Labels())

	c, err = Configure(map[string]any{"num_labels": 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"LABEL_0", "LABEL_1", "LABEL_2", "LABEL_3"}, c.Labels())
}

func TestArchitectureFields(t *testing.T) {
	c, err := Configure(map[string]any{"architectures": []string{"AlbertForQuestionAnswering"}})
	require.NoError(t, err)
	assert.Equal(t, ForQuestionAnswering, c.Architecture)

	c, err = Configure(map[string]any{
		"architectures": []string{"AlbertForQuestionAnswering"},
		"architecture":  "for_token_classification",
	})
	require.NoError(t, err)
	assert.Equal(t, ForTokenClassification, c.Architecture)

	for _, name := range Architectures() {
		a, err := ParseArchitecture(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.String())
	}
}

func TestActivationAliases(t *testing.T) {
	cases := map[string]Activation{
		"gelu":              GELU,
		"gelu_new":          GELUNew,
		"gelu_pytorch_tanh": GELUNew,
		"gelu_fast":         GELUFast,
		"quick_gelu":        QuickGELU,
		"relu":              RELU,
		"swish":             SILU,
		"silu":              SILU,
		"tanh":              Tanh,
	}

	for name, want := range cases {
		c, err := Configure(map[string]any{"hidden_act": name})
		require.NoError(t, err, name)
		assert.Equal(t, want, c.HiddenAct, name)
	}
}

func TestClassifierDropout(t *testing.T) {
	c, err := Configure(map[string]any{"hidden_dropout_prob": 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, c.ClassifierDropout(), 1e-7)

	c, err = Configure(map[string]any{"hidden_dropout_prob": 0.1, "classifier_dropout_prob": 0.3})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, c.ClassifierDropout(), 1e-7)

	c, err = Configure(map[string]any{"hidden_dropout_prob": 0.1, "classifier_dropout_prob": nil})
	require.NoError(t, err)
	assert.Nil(t, c.ClassifierDropoutProb)
}

func TestMapRoundTrip(t *testing.T) {
	c, err := Configure(map[string]any{
		"architecture":            "for_sequence_classification",
		"hidden_act":              "relu",
		"num_hidden_layers":       6,
		"num_hidden_groups":       3,
		"classifier_dropout_prob": 0.2,
		"id2label":                map[int]string{0: "no", 1: "yes"},
		"output_attentions":       true,
		"seed":                    uint64(42),
	})
	require.NoError(t, err)

	c2, err := Configure(c.Map())
	require.NoError(t, err)
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("Map-Roundtrip stimmt nicht (-erwartet +bekommen):\n%s", diff)
	}
}

func TestKVRoundTrip(t *testing.T) {
	c, err := Configure(map[string]any{
		"architecture":            "for_pretraining",
		"vocab_size":              10,
		"embedding_size":          4,
		"hidden_size":             8,
		"num_hidden_layers":       4,
		"num_hidden_groups":       2,
		"inner_group_num":         2,
		"num_attention_heads":     2,
		"intermediate_size":       16,
		"classifier_dropout_prob": 0.25,
		"id2label":                map[int]string{0: "a", 1: "b", 2: "c"},
		"output_hidden_states":    true,
		"seed":                    uint64(7),
	})
	require.NoError(t, err)

	kv := c.KV()
	assert.Equal(t, "albert", kv.Architecture())
	assert.Equal(t, uint64(4), kv.BlockCount())
	assert.Equal(t, uint64(8), kv.EmbeddingLength())

	c2, err := FromKV(kv)
	require.NoError(t, err)
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("KV-Roundtrip stimmt nicht (-erwartet +bekommen):\n%s", diff)
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "albert.gguf"))
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, ggml.WriteGGUF(f, kv, nil))
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	g, err := ggml.Decode(f)
	require.NoError(t, err)

	c3, err := FromKV(g.KV())
	require.NoError(t, err)
	if diff := cmp.Diff(c, c3); diff != "" {
		t.Errorf("GGUF-Roundtrip stimmt nicht (-erwartet +bekommen):\n%s", diff)
	}

	// Label-IDs ausserhalb von 0..n-1 gingen im Roundtrip verloren und werden abgelehnt
	_, err = Configure(map[string]any{"id2label": map[int]string{0: "neg", 2: "pos"}})
	assert.ErrorIs(t, err, ErrInvalidValue)

	sparse := c.KV()
	sparse["albert.labels"] = []string{"neg", "", "pos"}
	c4, err := FromKV(sparse)
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "", "pos"}, c4.Labels())

	_, err = FromKV(ggml.KV{"general.architecture": "bert"})
	assert.ErrorIs(t, err, ErrUnsupported)
}
