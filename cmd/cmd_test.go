package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/albert/fs/ggml"
	"github.com/ollama/albert/model/models/albert"
)

const tinyConfig = `{
	"vocab_size": 10,
	"embedding_size": 4,
	"hidden_size": 8,
	"num_hidden_layers": 2,
	"num_hidden_groups": 1,
	"inner_group_num": 1,
	"num_attention_heads": 2,
	"intermediate_size": 16,
	"max_position_embeddings": 9,
	"type_vocab_size": 2
}`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(tinyConfig), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestBuildCommand(t *testing.T) {
	out, err := run(t, "build", writeConfig(t), "--shape", "1,9")
	require.NoError(t, err)
	assert.Contains(t, out, "architecture base")
	assert.Contains(t, out, "last_hidden_state")
	assert.Contains(t, out, "(1, 9, 8)")
	assert.Contains(t, out, "pooler_output")
	assert.Contains(t, out, "0 tensors")
}

func TestBuildCommandCompute(t *testing.T) {
	out, err := run(t, "build", writeConfig(t),
		"--arch", "for_sequence_classification",
		"--set", "num_labels=3",
		"--shape", "-1,9",
		"--ids", "1,2,3,4,5,6,7,8,9,1,2,3,4,5,6,7,8,9",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "logits (2, 3)")

	_, err = run(t, "build", writeConfig(t), "--shape", "-1,9", "--ids", "1,2,3")
	assert.ErrorIs(t, err, errInvalidFlag)
}

func TestBuildCommandErrors(t *testing.T) {
	_, err := run(t, "build", writeConfig(t), "--set", "hiden_size=8")
	assert.ErrorIs(t, err, albert.ErrUnknownField)
	assert.Contains(t, err.Error(), `did you mean "hidden_size"`)

	_, err = run(t, "build", writeConfig(t), "--arch", "for_multiple_choice", "--shape", "1,9")
	assert.ErrorIs(t, err, albert.ErrChoicesAxis)

	_, err = run(t, "build", writeConfig(t), "--shape", "1,x")
	assert.ErrorIs(t, err, errInvalidFlag)

	_, err = run(t, "build", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildCommandEnvironment(t *testing.T) {
	t.Setenv("ALBERT_STRICT_GROUPS", "1")
	t.Setenv("ALBERT_SEED", "7")

	_, err := run(t, "build", writeConfig(t), "--set", "num_hidden_layers=3", "--set", "num_hidden_groups=2")
	assert.ErrorIs(t, err, albert.ErrInvalidValue)

	// --set gewinnt gegen die Umgebung
	_, err = run(t, "build", writeConfig(t),
		"--set", "num_hidden_layers=3", "--set", "num_hidden_groups=2", "--set", "strict_groups=false")
	require.NoError(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ALBERT_STRICT_GROUPS", "")
	t.Setenv("ALBERT_SEED", "")
	assert.Empty(t, envOverrides())

	t.Setenv("ALBERT_STRICT_GROUPS", "true")
	t.Setenv("ALBERT_SEED", "42")
	got := envOverrides()
	if diff := cmp.Diff(map[string]any{"strict_groups": true, "seed": uint64(42)}, got); diff != "" {
		t.Errorf("envOverrides stimmt nicht (-erwartet +bekommen):\n%s", diff)
	}
}

func TestShowCommand(t *testing.T) {
	out, err := run(t, "show", writeConfig(t), "--set", "num_hidden_layers=4", "--shape", "1,9")
	require.NoError(t, err)
	assert.Contains(t, out, "Config")
	assert.Contains(t, out, "num_hidden_layers")
	assert.Contains(t, out, "albert.pooler.weight")
	assert.Contains(t, out, "albert.encoder.albert_layer_groups.0.albert_layers.0.ffn.weight")
	assert.NotContains(t, out, "albert_layer_groups.1")

	out, err = run(t, "show", writeConfig(t), "--weights=false")
	require.NoError(t, err)
	assert.NotContains(t, out, "albert.pooler.weight")
}

func TestExportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "albert.gguf")
	out, err := run(t, "export", writeConfig(t), "--shape", "1,9", "--type", "f16", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "25 tensors")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	g, err := ggml.Decode(f)
	require.NoError(t, err)
	assert.Len(t, g.Tensors(), 25)

	c, err := albert.FromKV(g.KV())
	require.NoError(t, err)
	assert.Equal(t, 8, c.HiddenSize)
	assert.Equal(t, uint32(ggml.TensorTypeF16), g.KV().Uint("general.file_type"))
	assert.Equal(t, "albert-base", g.KV().Name())
	assert.Equal(t, uint64(9), g.KV().ContextLength())
	assert.Equal(t, uint64(804), g.KV().ParameterCount())

	tensor, ok := g.Tensor("albert.embeddings.LayerNorm.weight")
	require.True(t, ok)
	data, err := g.ReadTensor(f, tensor)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, data)

	_, err = run(t, "export", writeConfig(t), "--type", "q4_0", "-o", path)
	assert.Error(t, err)
}

func TestEnvCommand(t *testing.T) {
	t.Setenv("ALBERT_SEED", "42")
	out, err := run(t, "env")
	require.NoError(t, err)

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "ALBERT_SEED") {
			assert.Contains(t, line, "42")
			return
		}
	}
	t.Errorf("erwartet ALBERT_SEED in der Ausgabe, bekommen %q", out)
}

func TestEnvCommandJSON(t *testing.T) {
	t.Setenv("ALBERT_SEED", "42")
	t.Setenv("ALBERT_EXPORT_TYPE", "f16")
	t.Setenv("ALBERT_BACKEND", "")
	out, err := run(t, "env", "--json")
	require.NoError(t, err)

	var vals map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &vals))
	assert.Equal(t, "42", vals["ALBERT_SEED"])
	assert.Equal(t, "f16", vals["ALBERT_EXPORT_TYPE"])
	assert.Equal(t, "ref", vals["ALBERT_BACKEND"])
}

func TestParseOverrides(t *testing.T) {
	overrides, err := parseOverrides([]string{"num_hidden_layers=4", "hidden_act=gelu", "output_attentions=true", "classifier_dropout_prob=0.1"})
	require.NoError(t, err)

	c, err := albert.Configure(overrides)
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumHiddenLayers)
	assert.Equal(t, albert.GELU, c.HiddenAct)
	assert.True(t, c.OutputAttentions)
	assert.InDelta(t, 0.1, c.ClassifierDropout(), 1e-7)

	_, err = parseOverrides([]string{"novalue"})
	assert.ErrorIs(t, err, errInvalidFlag)
}

func TestParseShape(t *testing.T) {
	shape, err := parseShape("-1, 4,9")
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 4, 9}, shape)
	assert.Equal(t, "(?, 4, 9)", formatShape(shape))
}
