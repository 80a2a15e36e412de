package albert

import (
	"maps"
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/albert/ml"
	_ "github.com/ollama/albert/ml/backend/ref"
	"github.com/ollama/albert/model"
	"github.com/ollama/albert/model/input"
)

// tinyConfig ist die kleine Konfiguration der End-to-End-Szenarien
func tinyConfig(t *testing.T, overrides map[string]any) *Config {
	t.Helper()
	m := map[string]any{
		"vocab_size":              10,
		"embedding_size":          4,
		"hidden_size":             8,
		"num_hidden_layers":       2,
		"num_hidden_groups":       1,
		"inner_group_num":         1,
		"num_attention_heads":     2,
		"intermediate_size":       16,
		"max_position_embeddings": 9,
		"type_vocab_size":         2,
		"architecture":            "base",
		"seed":                    uint64(1),
		"strict_groups":           false,
	}
	for k, v := range overrides {
		m[k] = v
	}

	c, err := Configure(m)
	require.NoError(t, err)
	return c
}

func newContext(t *testing.T, params ml.BackendParams) ml.Context {
	t.Helper()
	b, err := ml.NewBackend("ref", params)
	require.NoError(t, err)
	ctx := b.NewContext()
	t.Cleanup(func() {
		ctx.Close()
		b.Close()
	})
	return ctx
}

type graph struct {
	ctx     ml.Context
	model   *Model
	outputs *model.Outputs
	batch   input.Batch
}

func build(t *testing.T, c *Config, shape []int, provided ...string) graph {
	t.Helper()
	m, err := NewModel(c)
	require.NoError(t, err)

	ctx := newContext(t, ml.BackendParams{})
	outputs, batch, err := Build(ctx, m, shape, provided...)
	require.NoError(t, err)
	return graph{ctx: ctx, model: m, outputs: outputs, batch: batch}
}

func (g graph) compute(t *testing.T, feeds map[string]ml.Array, names ...string) []ml.Array {
	t.Helper()
	var ts []ml.Tensor
	for _, name := range names {
		tt, ok := g.outputs.Get(name)
		require.True(t, ok, "Ausgabe %s fehlt", name)
		ts = append(ts, tt)
	}

	out, err := g.ctx.Compute(feeds, ts...)
	require.NoError(t, err)
	return out
}

func ids(shape []int, values ...int32) map[string]ml.Array {
	return map[string]ml.Array{input.InputIDs: ml.IntArray(values, shape...)}
}

var oneToNine = []int32{1, 2, 3, 4, 5, 6, 7, 8, 9}

func TestEndToEnd(t *testing.T) {
	g := build(t, tinyConfig(t, nil), []int{1, 9})

	assert.Equal(t, []string{model.LastHiddenState, model.PoolerOutput, model.HiddenStates, model.Attentions}, g.outputs.Keys())
	assert.Empty(t, g.outputs.HiddenStates())
	assert.Empty(t, g.outputs.Attentions())

	out := g.compute(t, ids([]int{1, 9}, oneToNine...), model.LastHiddenState, model.PoolerOutput)
	assert.Equal(t, []int{1, 9, 8}, out[0].Shape)
	assert.Equal(t, []int{1, 8}, out[1].Shape)

	for _, v := range out[1].Data {
		assert.LessOrEqual(t, v, float32(1))
		assert.GreaterOrEqual(t, v, float32(-1))
	}
}

func TestDynamicBatch(t *testing.T) {
	g := build(t, tinyConfig(t, nil), []int{-1, 9})

	last, _ := g.outputs.Get(model.LastHiddenState)
	assert.Equal(t, []int{-1, 9, 8}, last.Shape())

	out := g.compute(t, ids([]int{3, 9}, slices.Repeat(oneToNine, 3)...), model.LastHiddenState, model.PoolerOutput)
	assert.Equal(t, []int{3, 9, 8}, out[0].Shape)
	assert.Equal(t, []int{3, 8}, out[1].Shape)

	// gleiche Zeilen ergeben gleiche Ausgaben
	if diff := cmp.Diff(out[1].Data[:8], out[1].Data[16:], cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("Batch-Zeilen unterscheiden sich (-erste +dritte):\n%s", diff)
	}
}

func TestSequenceClassification(t *testing.T) {
	g := build(t, tinyConfig(t, map[string]any{"architecture": "for_sequence_classification", "num_labels": 3}), []int{1, 9})

	assert.Equal(t, []string{model.Logits, model.HiddenStates, model.Attentions}, g.outputs.Keys())
	out := g.compute(t, ids([]int{1, 9}, oneToNine...), model.Logits)
	assert.Equal(t, []int{1, 3}, out[0].Shape)
}

func TestHeads(t *testing.T) {
	cases := []struct {
		arch   string
		shapes map[string][]int
	}{
		{"base", map[string][]int{model.LastHiddenState: {1, 9, 8}, model.PoolerOutput: {1, 8}}},
		{"for_masked_lm", map[string][]int{model.Logits: {1, 9, 10}}},
		{"for_causal_lm", map[string][]int{model.Logits: {1, 9, 10}}},
		{"for_sequence_classification", map[string][]int{model.Logits: {1, 3}}},
		{"for_token_classification", map[string][]int{model.Logits: {1, 9, 3}}},
		{"for_question_answering", map[string][]int{model.StartLogits: {1, 9}, model.EndLogits: {1, 9}}},
		{"for_pretraining", map[string][]int{model.PredictionLogits: {1, 9, 10}, model.SOPLogits: {1, 2}}},
	}

	for _, tt := range cases {
		t.Run(tt.arch, func(t *testing.T) {
			g := build(t, tinyConfig(t, map[string]any{"architecture": tt.arch, "num_labels": 3}), []int{1, 9})

			var names []string
			for name := range g.outputs.Tensors() {
				names = append(names, name)
			}
			assert.ElementsMatch(t, slices.Collect(maps.Keys(tt.shapes)), names)

			out := g.compute(t, ids([]int{1, 9}, oneToNine...), names...)
			for i, name := range names {
				assert.Equal(t, tt.shapes[name], out[i].Shape, name)
			}
		})
	}
}

func TestQuestionAnsweringSplit(t *testing.T) {
	g := build(t, tinyConfig(t, map[string]any{"architecture": "for_question_answering"}), []int{1, 9})

	r := g.model.Registry()
	w, ok := r.Lookup(model.Address{Scope: "qa_outputs", Group: model.NoIndex, Inner: model.NoIndex, Param: "weight"})
	require.True(t, ok)
	assert.Equal(t, "qa_outputs.weight", w.Name)
	assert.Equal(t, []int{2, 8}, w.Shape)

	start, _ := g.outputs.Get(model.StartLogits)
	end, _ := g.outputs.Get(model.EndLogits)
	assert.Equal(t, []int{1, 9}, start.Shape())
	assert.Equal(t, []int{1, 9}, end.Shape())
}

func TestMultipleChoice(t *testing.T) {
	c := tinyConfig(t, map[string]any{"architecture": "for_multiple_choice"})

	for _, shape := range [][]int{{2, 4, 9}, {-1, 4, 9}, {-1, -1, 9}} {
		g := build(t, c, shape)
		assert.True(t, g.batch.Flattened())

		flat := g.batch.Inputs[input.InputIDs]
		if shape[0] > 0 {
			assert.Equal(t, []int{8, 9}, flat.Shape())
		} else {
			assert.Equal(t, []int{-1, 9}, flat.Shape())
		}

		out := g.compute(t, ids([]int{2, 4, 9}, slices.Repeat(oneToNine, 8)...), model.Logits)
		assert.Equal(t, []int{2, 4}, out[0].Shape, "%v", shape)
	}
}

func TestInputErrors(t *testing.T) {
	cases := []struct {
		arch  string
		shape []int
		err   error
	}{
		{"for_multiple_choice", []int{2, 9}, ErrChoicesAxis},
		{"base", []int{2, 4, 9}, ErrChoicesAxis},
		{"base", []int{1, 10}, ErrSequenceTooLong},
		{"base", []int{1, -1}, input.ErrDynamicSeq},
		{"base", []int{9}, input.ErrNoSequence},
	}

	for _, tt := range cases {
		m, err := NewModel(tinyConfig(t, map[string]any{"architecture": tt.arch}))
		require.NoError(t, err)

		_, _, err = Build(newContext(t, ml.BackendParams{}), m, tt.shape)
		assert.ErrorIs(t, err, tt.err, "%s %v", tt.arch, tt.shape)
	}
}

func TestRelativePositionsRejected(t *testing.T) {
	c := tinyConfig(t, map[string]any{"position_embedding_type": "relative_key"})
	assert.Equal(t, RelativeKey, c.PositionEmbeddingType)

	_, err := NewModel(c)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewFromKV(t *testing.T) {
	c := tinyConfig(t, map[string]any{"architecture": "for_token_classification"})

	m, err := model.New(c.KV())
	require.NoError(t, err)
	require.IsType(t, &Model{}, m)
	assert.Equal(t, ForTokenClassification, m.(*Model).Config().Architecture)
	assert.Contains(t, model.Architectures(), "albert")
}

func TestDefaultInputsMatchExplicit(t *testing.T) {
	c := tinyConfig(t, nil)
	derived := build(t, c, []int{1, 5})
	explicit := build(t, c, []int{1, 5}, input.AttentionMask, input.TokenTypeIDs, input.PositionIDs)

	a := derived.compute(t, ids([]int{1, 5}, 1, 2, 3, 4, 5), model.LastHiddenState)
	b := explicit.compute(t, map[string]ml.Array{
		input.InputIDs:      ml.IntArray([]int32{1, 2, 3, 4, 5}, 1, 5),
		input.AttentionMask: ml.IntArray([]int32{1, 1, 1, 1, 1}, 1, 5),
		input.TokenTypeIDs:  ml.IntArray([]int32{0, 0, 0, 0, 0}, 1, 5),
		input.PositionIDs:   ml.IntArray([]int32{0, 1, 2, 3, 4}, 1, 5),
	}, model.LastHiddenState)

	if diff := cmp.Diff(a[0], b[0], cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("Defaults unterscheiden sich von expliziten Eingaben (-abgeleitet +explizit):\n%s", diff)
	}
}

func TestAttentionMask(t *testing.T) {
	g := build(t, tinyConfig(t, nil), []int{1, 5}, input.AttentionMask)
	mask := ml.IntArray([]int32{1, 1, 1, 0, 0}, 1, 5)

	a := g.compute(t, map[string]ml.Array{
		input.InputIDs:      ml.IntArray([]int32{1, 2, 3, 4, 5}, 1, 5),
		input.AttentionMask: mask,
	}, model.LastHiddenState)
	b := g.compute(t, map[string]ml.Array{
		input.InputIDs:      ml.IntArray([]int32{1, 2, 3, 9, 0}, 1, 5),
		input.AttentionMask: mask,
	}, model.LastHiddenState)

	// maskierte Positionen beeinflussen die sichtbaren nicht
	visible := 3 * 8
	if diff := cmp.Diff(a[0].Data[:visible], b[0].Data[:visible], cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("maskierte Tokens veraendern sichtbare Positionen:\n%s", diff)
	}
	assert.NotEqual(t, a[0].Data[visible:], b[0].Data[visible:])
}

func TestAttentionMaskValues(t *testing.T) {
	g := build(t, tinyConfig(t, nil), []int{1, 5}, input.AttentionMask)
	ids := ml.IntArray([]int32{1, 2, 3, 4, 5}, 1, 5)

	binary := g.compute(t, map[string]ml.Array{
		input.InputIDs:      ids,
		input.AttentionMask: ml.IntArray([]int32{1, 1, 1, 0, 0}, 1, 5),
	}, model.LastHiddenState)
	weighted := g.compute(t, map[string]ml.Array{
		input.InputIDs:      ids,
		input.AttentionMask: ml.IntArray([]int32{1, 2, 1, 0, 0}, 1, 5),
	}, model.LastHiddenState)

	// nur 0 maskiert; jeder andere Wert ist sichtbar
	for i, v := range weighted[0].Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("erwartet endliche Werte, bekommen %v an Index %d", v, i)
		}
	}
	if diff := cmp.Diff(binary[0].Data, weighted[0].Data, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("Maskenwert 2 verhaelt sich anders als 1:\n%s", diff)
	}
}

func TestAttentionBias(t *testing.T) {
	ctx := newContext(t, ml.BackendParams{})
	mask := ctx.Input(input.AttentionMask, ml.DTypeI32, -1, 4)
	bias := attentionBias(ctx, mask)
	assert.Equal(t, []int{-1, 1, 1, 4}, bias.Shape())

	out, err := ctx.Compute(map[string]ml.Array{
		input.AttentionMask: ml.IntArray([]int32{1, 0, 2, -1}, 1, 4),
	}, bias)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, -math.MaxFloat32, 0, 0}, out[0].Data)
}

// encoderParams zaehlt die Gewichte der Gruppen
func encoderParams(a model.Address) bool {
	return a.Group != model.NoIndex
}

// layerParams ist die Parameterzahl eines inneren Layers mit hidden 8, intermediate 16
const layerParams = 4*(8*8+8) + 2*8 + (16*8 + 16) + (8*16 + 8) + 2*8

func TestSingleGroupSharing(t *testing.T) {
	for _, layers := range []int{1, 2, 6} {
		g := build(t, tinyConfig(t, map[string]any{"num_hidden_layers": layers}), []int{1, 9})
		r := g.model.Registry()

		assert.Equal(t, []int{0}, r.Groups(), "layers=%d", layers)
		assert.Equal(t, layerParams, r.ParameterCount(encoderParams), "layers=%d", layers)

		// 5 Embedding-, 2 Mapping-, 16 Layer- und 2 Pooler-Gewichte
		assert.Equal(t, 25, r.Len(), "layers=%d", layers)
		assert.Equal(t, (layers-1)*16, r.Hits(), "layers=%d", layers)
	}
}

func TestSharedTensorIdentity(t *testing.T) {
	g := build(t, tinyConfig(t, map[string]any{"num_hidden_layers": 3}), []int{1, 9})
	r := g.model.Registry()

	addr := model.InGroup("encoder", 0, 0)
	addr.Role, addr.Param = "attention.query", "weight"
	w, ok := r.Lookup(addr)
	require.True(t, ok)
	assert.Equal(t, "albert.encoder.albert_layer_groups.0.albert_layers.0.attention.query.weight", w.Name)
	assert.Equal(t, 3, w.Uses)

	var layer Layer
	require.NoError(t, model.Populate(r, model.InGroup("encoder", 0, 0), &layer, g.model.dims))
	assert.Same(t, w.Tensor, layer.Attention.Query.Weight)
}

func TestIndependentGroups(t *testing.T) {
	g := build(t, tinyConfig(t, map[string]any{"num_hidden_layers": 3, "num_hidden_groups": 3}), []int{1, 9})
	r := g.model.Registry()

	assert.Equal(t, []int{0, 1, 2}, r.Groups())
	assert.Equal(t, 3*layerParams, r.ParameterCount(encoderParams))
	assert.Equal(t, 0, r.Hits())
}

func TestInnerGroups(t *testing.T) {
	c := tinyConfig(t, map[string]any{
		"num_hidden_layers":    4,
		"num_hidden_groups":    2,
		"inner_group_num":      2,
		"output_hidden_states": true,
		"output_attentions":    true,
	})
	g := build(t, c, []int{1, 9})
	r := g.model.Registry()

	assert.Equal(t, []int{0, 1}, r.Groups())
	assert.Equal(t, 4*layerParams, r.ParameterCount(encoderParams))
	assert.Equal(t, 2*2*16, r.Hits())

	hs := g.outputs.HiddenStates()
	attn := g.outputs.Attentions()
	require.Len(t, hs, 5)
	require.Len(t, attn, 8)

	out, err := g.ctx.Compute(ids([]int{1, 9}, oneToNine...), append(hs, attn...)...)
	require.NoError(t, err)
	for _, a := range out[:5] {
		assert.Equal(t, []int{1, 9, 8}, a.Shape)
	}
	for _, a := range out[5:] {
		assert.Equal(t, []int{1, 2, 9, 9}, a.Shape)

		for row := 0; row < len(a.Data); row += 9 {
			var sum float32
			for _, p := range a.Data[row : row+9] {
				sum += p
			}
			assert.InDelta(t, 1, sum, 1e-5)
		}
	}
}

func TestUnevenGroupGraph(t *testing.T) {
	g := build(t, tinyConfig(t, map[string]any{"num_hidden_layers": 5, "num_hidden_groups": 2}), []int{1, 9})
	r := g.model.Registry()

	assert.Equal(t, []int{0, 1}, r.Groups())
	assert.Equal(t, 2*layerParams, r.ParameterCount(encoderParams))

	addr := model.InGroup("encoder", 1, 0)
	addr.Role, addr.Param = "ffn", "weight"
	w, ok := r.Lookup(addr)
	require.True(t, ok)
	assert.Equal(t, 3, w.Uses)
}

func TestWeightNames(t *testing.T) {
	g := build(t, tinyConfig(t, map[string]any{"architecture": "for_pretraining"}), []int{1, 9})

	var names []string
	for _, w := range g.model.Registry().Weights() {
		names = append(names, w.Name)
	}

	want := []string{
		"albert.embeddings.word_embeddings.weight",
		"albert.embeddings.position_embeddings.weight",
		"albert.embeddings.token_type_embeddings.weight",
		"albert.embeddings.LayerNorm.weight",
		"albert.embeddings.LayerNorm.bias",
		"albert.encoder.embedding_hidden_mapping_in.weight",
		"albert.encoder.embedding_hidden_mapping_in.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.query.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.query.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.key.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.key.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.value.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.value.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.dense.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.dense.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.LayerNorm.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.attention.LayerNorm.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.ffn.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.ffn.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.ffn_output.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.ffn_output.bias",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.full_layer_layer_norm.weight",
		"albert.encoder.albert_layer_groups.0.albert_layers.0.full_layer_layer_norm.bias",
		"albert.pooler.weight",
		"albert.pooler.bias",
		"predictions.dense.weight",
		"predictions.dense.bias",
		"predictions.LayerNorm.weight",
		"predictions.LayerNorm.bias",
		"predictions.decoder.weight",
		"predictions.decoder.bias",
		"sop_classifier.classifier.weight",
		"sop_classifier.classifier.bias",
	}

	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Gewichtsnamen stimmen nicht (-erwartet +bekommen):\n%s", diff)
	}
}

func TestFingerprint(t *testing.T) {
	c := tinyConfig(t, nil)
	a := build(t, c, []int{1, 9})
	b := build(t, c, []int{1, 9})
	assert.Equal(t, a.ctx.Fingerprint(), b.ctx.Fingerprint())

	grouped := build(t, tinyConfig(t, map[string]any{"num_hidden_groups": 2}), []int{1, 9})
	assert.NotEqual(t, a.ctx.Fingerprint(), grouped.ctx.Fingerprint())

	dropout := build(t, tinyConfig(t, map[string]any{"hidden_dropout_prob": 0.1}), []int{1, 9})
	assert.NotEqual(t, a.ctx.Fingerprint(), dropout.ctx.Fingerprint())
}

func TestSeededWeights(t *testing.T) {
	a := build(t, tinyConfig(t, map[string]any{"seed": uint64(3)}), []int{1, 9})
	b := build(t, tinyConfig(t, map[string]any{"seed": uint64(3)}), []int{1, 9})
	c := build(t, tinyConfig(t, map[string]any{"seed": uint64(4)}), []int{1, 9})

	wa, wb, wc := a.model.Registry().Weights(), b.model.Registry().Weights(), c.model.Registry().Weights()
	assert.Equal(t, wa[0].Data, wb[0].Data)
	assert.NotEqual(t, wa[0].Data, wc[0].Data)

	// LayerNorm: Einsen und Nullen
	assert.Equal(t, []float32{1, 1, 1, 1}, wa[3].Data)
	assert.Equal(t, []float32{0, 0, 0, 0}, wa[4].Data)
}

func TestTrainingDropout(t *testing.T) {
	c := tinyConfig(t, map[string]any{"hidden_dropout_prob": 0.5})
	m, err := NewModel(c)
	require.NoError(t, err)

	run := func(training bool) ml.Array {
		ctx := newContext(t, ml.BackendParams{Training: training, Seed: 1})
		outputs, _, err := Build(ctx, m, []int{1, 9})
		require.NoError(t, err)

		last, _ := outputs.Get(model.LastHiddenState)
		out, err := ctx.Compute(ids([]int{1, 9}, oneToNine...), last)
		require.NoError(t, err)
		return out[0]
	}

	eval1, eval2 := run(false), run(false)
	assert.Equal(t, eval1.Data, eval2.Data)
	assert.NotEqual(t, eval1.Data, run(true).Data)
}
