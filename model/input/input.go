// Package input beschreibt die benannten Eingaben eines Encoder-Graphen.
//
// Pflicht ist nur input_ids. attention_mask, token_type_ids und
// position_ids koennen als Platzhalter deklariert werden; fehlen sie,
// leitet ein Provider sie beim Aufbau des Graphen aus input_ids ab. Der
// Wert entsteht damit erst zur Laufzeit aus der Form von input_ids.
package input

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ollama/albert/ml"
)

// Namen der Eingaben
const (
	InputIDs      = "input_ids"
	AttentionMask = "attention_mask"
	TokenTypeIDs  = "token_type_ids"
	PositionIDs   = "position_ids"
)

// Names listet alle Eingaben in fester Reihenfolge
var Names = []string{InputIDs, AttentionMask, TokenTypeIDs, PositionIDs}

// Provider leitet eine optionale Eingabe aus den bereits gebundenen ab
type Provider func(ctx ml.Context, bound map[string]ml.Tensor) ml.Tensor

// Spec ist ein benannter Platzhalter mit optionaler Default-Regel
type Spec struct {
	Name    string
	Shape   []int
	DType   ml.DType
	Default Provider
}

// Required ist wahr fuer Eingaben ohne Default
func (s Spec) Required() bool {
	return s.Default == nil
}

// Ones: Maske aus Einsen in der Form von input_ids
func Ones(ctx ml.Context, bound map[string]ml.Tensor) ml.Tensor {
	return ctx.OnesLike(bound[InputIDs])
}

// Zeros: Segment 0 fuer alle Positionen
func Zeros(ctx ml.Context, bound map[string]ml.Tensor) ml.Tensor {
	return ctx.ZerosLike(bound[InputIDs])
}

// Positions: 0, 1, 2, ... entlang der Sequenzachse, fuer jede Zeile
func Positions(ctx ml.Context, bound map[string]ml.Tensor) ml.Tensor {
	return ctx.ArangeLike(bound[InputIDs], -1)
}

var (
	ErrNoSequence = errors.New("input shape needs a sequence axis")
	ErrDynamicSeq = errors.New("sequence length must be known when the graph is built")
)

// BuildInputs erstellt die Specs fuer eine Eingabeform (batch, seq) oder
// (batch, choices, seq). batch und choices duerfen -1 sein.
func BuildInputs(shape ...int) ([]Spec, error) {
	if len(shape) < 2 || len(shape) > 3 {
		return nil, fmt.Errorf("%w: got rank %d, want (batch, [choices,] sequence)", ErrNoSequence, len(shape))
	}
	if shape[len(shape)-1] <= 0 {
		return nil, ErrDynamicSeq
	}
	for _, d := range shape[:len(shape)-1] {
		if d == 0 || d < -1 {
			return nil, fmt.Errorf("invalid input dimension %d in %v", d, shape)
		}
	}

	providers := map[string]Provider{
		AttentionMask: Ones,
		TokenTypeIDs:  Zeros,
		PositionIDs:   Positions,
	}

	specs := make([]Spec, len(Names))
	for i, name := range Names {
		specs[i] = Spec{
			Name:    name,
			Shape:   slices.Clone(shape),
			DType:   ml.DTypeI32,
			Default: providers[name],
		}
	}
	return specs, nil
}

// Batch sind die gebundenen Eingaben eines Graphen
type Batch struct {
	// Shape ist die urspruengliche Eingabeform
	Shape []int

	// Inputs sind die Eingaben in Encoder-Form (batch, seq)
	Inputs map[string]ml.Tensor

	// Original ist input_ids vor dem Flatten; die Laufzeit-Dimensionen
	// (batch, choices) werden fuer das Zurueckformen daraus gelesen
	Original ml.Tensor

	// Provided sind die als Platzhalter deklarierten Eingaben
	Provided []string
}

// Flattened ist wahr wenn (batch, choices) zusammengelegt wurden
func (b Batch) Flattened() bool {
	return len(b.Shape) == 3
}

// SeqLen gibt die Sequenzlaenge zurueck
func (b Batch) SeqLen() int {
	return b.Shape[len(b.Shape)-1]
}

// Bind deklariert input_ids und die in provided genannten Eingaben als
// Platzhalter und leitet die uebrigen ueber ihre Provider ab. Bei Rang 3
// werden (batch, choices) zu einer Batch-Achse zusammengelegt.
func Bind(ctx ml.Context, specs []Spec, provided ...string) (Batch, error) {
	for _, name := range provided {
		if !slices.ContainsFunc(specs, func(s Spec) bool { return s.Name == name }) {
			return Batch{}, fmt.Errorf("unknown input %q", name)
		}
	}

	bound := make(map[string]ml.Tensor, len(specs))
	b := Batch{Inputs: make(map[string]ml.Tensor, len(specs))}
	for _, s := range specs {
		if s.Required() || slices.Contains(provided, s.Name) {
			bound[s.Name] = ctx.Input(s.Name, s.DType, s.Shape...)
			b.Provided = append(b.Provided, s.Name)
			b.Shape = s.Shape
		}
	}

	if _, ok := bound[InputIDs]; !ok {
		return Batch{}, fmt.Errorf("missing required input %q", InputIDs)
	}

	for _, s := range specs {
		if _, ok := bound[s.Name]; !ok {
			slog.Debug("derive default input", "name", s.Name)
			bound[s.Name] = s.Default(ctx, bound)
		}
	}

	b.Original = bound[InputIDs]
	for _, s := range specs {
		t := bound[s.Name]
		if b.Flattened() {
			t = t.Reshape(ctx, -1, b.SeqLen())
		}
		b.Inputs[s.Name] = t
	}

	return b, nil
}
