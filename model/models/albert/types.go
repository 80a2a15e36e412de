// Modul: types.go
// Beschreibung: Geschlossene Aufzaehlungen der ALBERT-Konfiguration
// Hauptstrukturen:
//   - Architecture: die acht Ausgabekoepfe
//   - Activation: Aktivierungsfunktionen (hidden_act)
//   - PositionEmbeddingType: Art der Positions-Embeddings

package albert

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ollama/albert/ml"
)

// Architecture waehlt den Ausgabekopf
type Architecture int

const (
	Base Architecture = iota
	ForMaskedLM
	ForCausalLM
	ForSequenceClassification
	ForTokenClassification
	ForQuestionAnswering
	ForMultipleChoice
	ForPreTraining
)

var architectureNames = []string{
	"base",
	"for_masked_lm",
	"for_causal_lm",
	"for_sequence_classification",
	"for_token_classification",
	"for_question_answering",
	"for_multiple_choice",
	"for_pretraining",
}

// hfArchitectures bildet die Klassennamen aus config.json ab
var hfArchitectures = map[string]Architecture{
	"AlbertModel":                     Base,
	"AlbertForMaskedLM":               ForMaskedLM,
	"AlbertForCausalLM":               ForCausalLM,
	"AlbertForSequenceClassification": ForSequenceClassification,
	"AlbertForTokenClassification":    ForTokenClassification,
	"AlbertForQuestionAnswering":      ForQuestionAnswering,
	"AlbertForMultipleChoice":         ForMultipleChoice,
	"AlbertForPreTraining":            ForPreTraining,
}

// Architectures gibt alle Architektur-Namen zurueck
func Architectures() []string {
	return slices.Clone(architectureNames)
}

// ParseArchitecture parst einen Architektur-Namen oder einen HF-Klassennamen
func ParseArchitecture(s string) (Architecture, error) {
	if i := slices.Index(architectureNames, s); i >= 0 {
		return Architecture(i), nil
	}
	if a, ok := hfArchitectures[s]; ok {
		return a, nil
	}
	return 0, &ConfigError{Field: "architecture", Value: s, Err: ErrUnknownArchitecture, Suggestion: suggest(s, architectureNames)}
}

func (a Architecture) String() string {
	if a < 0 || int(a) >= len(architectureNames) {
		return fmt.Sprintf("Architecture(%d)", int(a))
	}
	return architectureNames[a]
}

// MarshalJSON schreibt den Architektur-Namen
func (a Architecture) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Activation ist die Aktivierungsfunktion des Feed-Forward-Blocks und des LM-Kopfs
type Activation int

const (
	GELU Activation = iota
	GELUNew
	GELUFast
	QuickGELU
	RELU
	SILU
	Tanh
)

var activationNames = map[string]Activation{
	"gelu":              GELU,
	"gelu_new":          GELUNew,
	"gelu_fast":         GELUFast,
	"gelu_pytorch_tanh": GELUNew,
	"quick_gelu":        QuickGELU,
	"relu":              RELU,
	"silu":              SILU,
	"swish":             SILU,
	"tanh":              Tanh,
}

// ParseActivation parst hidden_act
func ParseActivation(s string) (Activation, error) {
	if a, ok := activationNames[s]; ok {
		return a, nil
	}
	return 0, &ConfigError{Field: "hidden_act", Value: s, Err: ErrUnknownValue, Suggestion: suggest(s, keys(activationNames))}
}

func (a Activation) String() string {
	switch a {
	case GELU:
		return "gelu"
	case GELUNew:
		return "gelu_new"
	case GELUFast:
		return "gelu_fast"
	case QuickGELU:
		return "quick_gelu"
	case RELU:
		return "relu"
	case SILU:
		return "silu"
	case Tanh:
		return "tanh"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// MarshalJSON schreibt den Namen der Aktivierung
func (a Activation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Forward wendet die Aktivierung an
func (a Activation) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	switch a {
	case GELU:
		return t.GELU(ctx)
	case GELUNew, GELUFast:
		return t.GELUApprox(ctx)
	case QuickGELU:
		return t.QuickGELU(ctx)
	case RELU:
		return t.RELU(ctx)
	case SILU:
		return t.SILU(ctx)
	case Tanh:
		return t.Tanh(ctx)
	default:
		panic(fmt.Sprintf("unknown activation %d", int(a)))
	}
}

// PositionEmbeddingType ist die Art der Positions-Embeddings
type PositionEmbeddingType int

const (
	Absolute PositionEmbeddingType = iota
	RelativeKey
	RelativeKeyQuery
)

var positionEmbeddingNames = []string{"absolute", "relative_key", "relative_key_query"}

// ParsePositionEmbeddingType parst position_embedding_type
func ParsePositionEmbeddingType(s string) (PositionEmbeddingType, error) {
	if i := slices.Index(positionEmbeddingNames, s); i >= 0 {
		return PositionEmbeddingType(i), nil
	}
	return 0, &ConfigError{Field: "position_embedding_type", Value: s, Err: ErrUnknownValue, Suggestion: suggest(s, positionEmbeddingNames)}
}

func (p PositionEmbeddingType) String() string {
	if p < 0 || int(p) >= len(positionEmbeddingNames) {
		return fmt.Sprintf("PositionEmbeddingType(%d)", int(p))
	}
	return positionEmbeddingNames[p]
}

// MarshalJSON schreibt den Namen des Typs
func (p PositionEmbeddingType) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}
