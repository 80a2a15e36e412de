// Modul: config.go
// Beschreibung: ALBERT-Konfiguration mit Defaults, Overrides und abgeleiteten Feldern
// Hauptstrukturen:
//   - Config: unveraenderliche, gepruefte Konfiguration
//   - Configure: Overrides auf die Defaults anwenden, ableiten, pruefen
//   - Load/LoadFile: HF config.json lesen
//   - Validate: Groessen, Teilbarkeit und Wahrscheinlichkeiten pruefen

package albert

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
)

// Config ist die Konfiguration eines ALBERT-Graphen. Nach Configure wird
// sie nicht mehr veraendert.
type Config struct {
	Architecture Architecture

	VocabSize         int
	EmbeddingSize     int
	HiddenSize        int
	NumHiddenLayers   int
	NumHiddenGroups   int
	NumAttentionHeads int
	IntermediateSize  int
	InnerGroupNum     int
	HiddenAct         Activation

	HiddenDropoutProb         float32
	AttentionProbsDropoutProb float32

	// ClassifierDropoutProb ist optional; nil faellt auf HiddenDropoutProb zurueck
	ClassifierDropoutProb *float32

	MaxPositionEmbeddings int
	TypeVocabSize         int
	InitializerRange      float32
	LayerNormEps          float32
	PositionEmbeddingType PositionEmbeddingType

	NumLabels int
	ID2Label  map[int]string
	Label2ID  map[string]int

	OutputHiddenStates bool
	OutputAttentions   bool

	PadTokenID int
	BOSTokenID int
	EOSTokenID int

	// StrictGroups lehnt num_hidden_layers ab, die nicht durch
	// num_hidden_groups teilbar sind
	StrictGroups bool

	// Seed initialisiert die Gewichte
	Seed uint64
}

// defaultConfig enthaelt alle Felder mit ihren Defaults
func defaultConfig() *Config {
	return &Config{
		Architecture:              Base,
		VocabSize:                 30000,
		EmbeddingSize:             128,
		HiddenSize:                4096,
		NumHiddenLayers:           12,
		NumHiddenGroups:           1,
		NumAttentionHeads:         64,
		IntermediateSize:          16384,
		InnerGroupNum:             1,
		HiddenAct:                 GELUNew,
		HiddenDropoutProb:         0,
		AttentionProbsDropoutProb: 0,
		MaxPositionEmbeddings:     512,
		TypeVocabSize:             2,
		InitializerRange:          0.02,
		LayerNormEps:              1e-12,
		PositionEmbeddingType:     Absolute,
		NumLabels:                 2,
		PadTokenID:                0,
		BOSTokenID:                2,
		EOSTokenID:                3,
	}
}

// fields bindet die Schluessel aus config.json an die Felder von c
func (c *Config) fields() map[string]any {
	return map[string]any{
		"architecture":                 &c.Architecture,
		"vocab_size":                   &c.VocabSize,
		"embedding_size":               &c.EmbeddingSize,
		"hidden_size":                  &c.HiddenSize,
		"num_hidden_layers":            &c.NumHiddenLayers,
		"num_hidden_groups":            &c.NumHiddenGroups,
		"num_attention_heads":          &c.NumAttentionHeads,
		"intermediate_size":            &c.IntermediateSize,
		"inner_group_num":              &c.InnerGroupNum,
		"hidden_act":                   &c.HiddenAct,
		"hidden_dropout_prob":          &c.HiddenDropoutProb,
		"attention_probs_dropout_prob": &c.AttentionProbsDropoutProb,
		"classifier_dropout_prob":      &c.ClassifierDropoutProb,
		"max_position_embeddings":      &c.MaxPositionEmbeddings,
		"type_vocab_size":              &c.TypeVocabSize,
		"initializer_range":            &c.InitializerRange,
		"layer_norm_eps":               &c.LayerNormEps,
		"position_embedding_type":      &c.PositionEmbeddingType,
		"num_labels":                   &c.NumLabels,
		"id2label":                     &c.ID2Label,
		"label2id":                     &c.Label2ID,
		"output_hidden_states":         &c.OutputHiddenStates,
		"output_attentions":            &c.OutputAttentions,
		"pad_token_id":                 &c.PadTokenID,
		"bos_token_id":                 &c.BOSTokenID,
		"eos_token_id":                 &c.EOSTokenID,
		"strict_groups":                &c.StrictGroups,
		"seed":                         &c.Seed,
	}
}

// ignoredFields stehen in config.json, beeinflussen den Graphen aber nicht
var ignoredFields = []string{
	"down_scale_factor",
	"gap_size",
	"net_structure_type",
	"num_memory_blocks",
	"torch_dtype",
	"transformers_version",
	"problem_type",
	"tokenizer_class",
	"use_cache",
	"return_dict",
	"_name_or_path",
}

// Configure wendet overrides auf die Defaults an, berechnet die
// abgeleiteten Felder und prueft das Ergebnis.
func Configure(overrides map[string]any) (*Config, error) {
	c := defaultConfig()
	fields := c.fields()

	// architecture hat Vorrang vor der HF-Liste architectures
	if v, ok := overrides["architectures"]; ok {
		if _, explicit := overrides["architecture"]; !explicit {
			if err := c.setArchitectures(v); err != nil {
				return nil, err
			}
		}
	}

	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		v := overrides[k]
		switch {
		case k == "architectures":
			continue
		case k == "model_type":
			if v != "albert" {
				return nil, &ConfigError{Field: k, Value: v, Err: ErrUnsupported}
			}
			continue
		case slices.Contains(ignoredFields, k):
			slog.Debug("ignoring config field", "field", k)
			continue
		}

		ptr, ok := fields[k]
		if !ok {
			known := append(slices.Collect(maps.Keys(fields)), "architectures", "model_type")
			return nil, &ConfigError{Field: k, Err: ErrUnknownField, Suggestion: suggest(k, known)}
		}

		if err := set(k, ptr, v); err != nil {
			return nil, err
		}
	}

	_, explicitLabels := overrides["num_labels"]
	if err := c.derive(explicitLabels); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Load liest eine HF config.json aus r. overrides werden danach ueber die
// Werte der Datei gelegt.
func Load(r io.Reader, overrides ...map[string]any) (*Config, error) {
	d := json.NewDecoder(r)
	d.UseNumber()

	var m map[string]any
	if err := d.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if m == nil {
		m = make(map[string]any)
	}
	for _, o := range overrides {
		maps.Copy(m, o)
	}

	return Configure(m)
}

// LoadFile liest eine HF config.json
func LoadFile(path string, overrides ...map[string]any) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f, overrides...)
}

func (c *Config) setArchitectures(v any) error {
	var names []string
	switch v := v.(type) {
	case []string:
		names = v
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return &ConfigError{Field: "architectures", Value: v, Err: ErrTypeMismatch}
			}
			names = append(names, s)
		}
	default:
		return &ConfigError{Field: "architectures", Value: v, Err: ErrTypeMismatch}
	}

	if len(names) == 0 {
		return nil
	}
	if len(names) > 1 {
		slog.Warn("multiple architectures in config, using the first", "architectures", names)
	}

	a, err := ParseArchitecture(names[0])
	if err != nil {
		return err
	}
	c.Architecture = a
	return nil
}

// set konvertiert v in den Typ des Feldes ptr
func set(k string, ptr, v any) error {
	mismatch := &ConfigError{Field: k, Value: v, Err: ErrTypeMismatch}
	if v == nil {
		// null ist nur fuer optionale Felder erlaubt
		p, ok := ptr.(**float32)
		if !ok {
			return mismatch
		}
		*p = nil
		return nil
	}

	switch p := ptr.(type) {
	case *int:
		n, ok := toInt(v)
		if !ok {
			return mismatch
		}
		*p = n
	case *uint64:
		if u, ok := v.(uint64); ok {
			*p = u
			break
		}

		n, ok := toInt(v)
		if !ok || n < 0 {
			return mismatch
		}
		*p = uint64(n)
	case *float32:
		f, ok := toFloat(v)
		if !ok {
			return mismatch
		}
		*p = f
	case **float32:
		f, ok := toFloat(v)
		if !ok {
			return mismatch
		}
		*p = &f
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return mismatch
		}
		*p = b
	case *Architecture:
		switch v := v.(type) {
		case Architecture:
			*p = v
		case string:
			a, err := ParseArchitecture(v)
			if err != nil {
				return err
			}
			*p = a
		default:
			return mismatch
		}
	case *Activation:
		switch v := v.(type) {
		case Activation:
			*p = v
		case string:
			a, err := ParseActivation(v)
			if err != nil {
				return err
			}
			*p = a
		default:
			return mismatch
		}
	case *PositionEmbeddingType:
		switch v := v.(type) {
		case PositionEmbeddingType:
			*p = v
		case string:
			t, err := ParsePositionEmbeddingType(v)
			if err != nil {
				return err
			}
			*p = t
		default:
			return mismatch
		}
	case *map[int]string:
		m, err := toID2Label(v)
		if err != nil {
			return mismatch
		}
		*p = m
	case *map[string]int:
		m, err := toLabel2ID(v)
		if err != nil {
			return mismatch
		}
		*p = m
	default:
		panic(fmt.Sprintf("config field %s has unsupported type %T", k, ptr))
	}

	return nil
}

func toInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float32, bool) {
	switch v := v.(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	case int:
		return float32(v), true
	case json.Number:
		f, err := v.Float64()
		return float32(f), err == nil
	default:
		return 0, false
	}
}

func toID2Label(v any) (map[int]string, error) {
	switch v := v.(type) {
	case map[int]string:
		return maps.Clone(v), nil
	case map[string]string:
		m := make(map[int]string, len(v))
		for k, label := range v {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, err
			}
			m[id] = label
		}
		return m, nil
	case map[string]any:
		m := make(map[int]string, len(v))
		for k, label := range v {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, err
			}
			s, ok := label.(string)
			if !ok {
				return nil, fmt.Errorf("label %v is not a string", label)
			}
			m[id] = s
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}

func toLabel2ID(v any) (map[string]int, error) {
	switch v := v.(type) {
	case map[string]int:
		return maps.Clone(v), nil
	case map[string]any:
		m := make(map[string]int, len(v))
		for label, id := range v {
			n, ok := toInt(id)
			if !ok {
				return nil, fmt.Errorf("id %v is not an integer", id)
			}
			m[label] = n
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}

// derive berechnet die abgeleiteten Felder in einem Schritt
func (c *Config) derive(explicitLabels bool) error {
	switch {
	case len(c.ID2Label) > 0 && !explicitLabels:
		c.NumLabels = len(c.ID2Label)
	case len(c.ID2Label) > 0 && len(c.ID2Label) != c.NumLabels:
		return &ConfigError{
			Field: "num_labels",
			Value: c.NumLabels,
			Err:   fmt.Errorf("%w: id2label has %d entries", ErrInvalidValue, len(c.ID2Label)),
		}
	case len(c.ID2Label) == 0:
		c.ID2Label = make(map[int]string, c.NumLabels)
		for i := range c.NumLabels {
			c.ID2Label[i] = "LABEL_" + strconv.Itoa(i)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(c.ID2Label)) {
		if id < 0 || id >= c.NumLabels {
			return &ConfigError{
				Field: "id2label",
				Value: id,
				Err:   fmt.Errorf("%w: label ids must be 0..%d", ErrInvalidValue, c.NumLabels-1),
			}
		}
	}

	if len(c.Label2ID) == 0 {
		c.Label2ID = make(map[string]int, len(c.ID2Label))
		for id, label := range c.ID2Label {
			c.Label2ID[label] = id
		}
	}

	return nil
}

// ClassifierDropout gibt classifier_dropout_prob oder hidden_dropout_prob zurueck
func (c *Config) ClassifierDropout() float32 {
	if c.ClassifierDropoutProb != nil {
		return *c.ClassifierDropoutProb
	}
	return c.HiddenDropoutProb
}

// LayersPerGroup gibt num_hidden_layers / num_hidden_groups zurueck (ganzzahlig)
func (c *Config) LayersPerGroup() int {
	return c.NumHiddenLayers / c.NumHiddenGroups
}

// Labels gibt die Label-Namen nach ID sortiert zurueck
func (c *Config) Labels() []string {
	labels := make([]string, c.NumLabels)
	for id, label := range c.ID2Label {
		if id >= 0 && id < len(labels) {
			labels[id] = label
		}
	}
	return labels
}

// Validate prueft die Konfiguration
func (c *Config) Validate() error {
	if c.Architecture < Base || c.Architecture > ForPreTraining {
		return &ConfigError{Field: "architecture", Value: int(c.Architecture), Err: ErrUnknownArchitecture}
	}

	for _, f := range []struct {
		name  string
		value int
	}{
		{"vocab_size", c.VocabSize},
		{"embedding_size", c.EmbeddingSize},
		{"hidden_size", c.HiddenSize},
		{"num_hidden_layers", c.NumHiddenLayers},
		{"num_hidden_groups", c.NumHiddenGroups},
		{"num_attention_heads", c.NumAttentionHeads},
		{"intermediate_size", c.IntermediateSize},
		{"inner_group_num", c.InnerGroupNum},
		{"max_position_embeddings", c.MaxPositionEmbeddings},
		{"type_vocab_size", c.TypeVocabSize},
		{"num_labels", c.NumLabels},
	} {
		if f.value <= 0 {
			return &ConfigError{Field: f.name, Value: f.value, Err: fmt.Errorf("%w: must be positive", ErrInvalidValue)}
		}
	}

	if c.HiddenSize%c.NumAttentionHeads != 0 {
		return &ConfigError{
			Field: "hidden_size",
			Value: c.HiddenSize,
			Err:   fmt.Errorf("%w: not a multiple of num_attention_heads (%d)", ErrInvalidValue, c.NumAttentionHeads),
		}
	}

	if c.NumHiddenGroups > c.NumHiddenLayers {
		return &ConfigError{
			Field: "num_hidden_groups",
			Value: c.NumHiddenGroups,
			Err:   fmt.Errorf("%w: more groups than num_hidden_layers (%d)", ErrInvalidValue, c.NumHiddenLayers),
		}
	}

	if c.StrictGroups && c.NumHiddenLayers%c.NumHiddenGroups != 0 {
		return &ConfigError{
			Field: "num_hidden_layers",
			Value: c.NumHiddenLayers,
			Err:   fmt.Errorf("%w: not divisible by num_hidden_groups (%d)", ErrInvalidValue, c.NumHiddenGroups),
		}
	}

	for _, f := range []struct {
		name  string
		value float32
	}{
		{"hidden_dropout_prob", c.HiddenDropoutProb},
		{"attention_probs_dropout_prob", c.AttentionProbsDropoutProb},
		{"classifier_dropout_prob", c.ClassifierDropout()},
	} {
		if f.value < 0 || f.value >= 1 {
			return &ConfigError{Field: f.name, Value: f.value, Err: fmt.Errorf("%w: must be in [0, 1)", ErrInvalidValue)}
		}
	}

	if c.LayerNormEps <= 0 {
		return &ConfigError{Field: "layer_norm_eps", Value: c.LayerNormEps, Err: fmt.Errorf("%w: must be positive", ErrInvalidValue)}
	}
	if c.InitializerRange < 0 {
		return &ConfigError{Field: "initializer_range", Value: c.InitializerRange, Err: fmt.Errorf("%w: must not be negative", ErrInvalidValue)}
	}

	return nil
}

// Map gibt die Konfiguration in der Form von config.json zurueck.
// Configure(c.Map()) ergibt eine gleiche Konfiguration.
func (c *Config) Map() map[string]any {
	m := map[string]any{
		"model_type":                   "albert",
		"architecture":                 c.Architecture.String(),
		"vocab_size":                   c.VocabSize,
		"embedding_size":               c.EmbeddingSize,
		"hidden_size":                  c.HiddenSize,
		"num_hidden_layers":            c.NumHiddenLayers,
		"num_hidden_groups":            c.NumHiddenGroups,
		"num_attention_heads":          c.NumAttentionHeads,
		"intermediate_size":            c.IntermediateSize,
		"inner_group_num":              c.InnerGroupNum,
		"hidden_act":                   c.HiddenAct.String(),
		"hidden_dropout_prob":          c.HiddenDropoutProb,
		"attention_probs_dropout_prob": c.AttentionProbsDropoutProb,
		"max_position_embeddings":      c.MaxPositionEmbeddings,
		"type_vocab_size":              c.TypeVocabSize,
		"initializer_range":            c.InitializerRange,
		"layer_norm_eps":               c.LayerNormEps,
		"position_embedding_type":      c.PositionEmbeddingType.String(),
		"num_labels":                   c.NumLabels,
		"id2label":                     maps.Clone(c.ID2Label),
		"label2id":                     maps.Clone(c.Label2ID),
		"output_hidden_states":         c.OutputHiddenStates,
		"output_attentions":            c.OutputAttentions,
		"pad_token_id":                 c.PadTokenID,
		"bos_token_id":                 c.BOSTokenID,
		"eos_token_id":                 c.EOSTokenID,
		"strict_groups":                c.StrictGroups,
		"seed":                         c.Seed,
	}
	if c.ClassifierDropoutProb != nil {
		m["classifier_dropout_prob"] = *c.ClassifierDropoutProb
	}
	return m
}
