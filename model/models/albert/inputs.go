// Modul: inputs.go
// Beschreibung: Eingaben eines ALBERT-Graphen
// Hauptstrukturen:
//   - Model.Inputs: Specs fuer eine Eingabeform, abhaengig von der Architektur
//   - Build: Eingaben binden und den Graphen aufbauen

package albert

import (
	"errors"
	"fmt"

	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/model"
	"github.com/ollama/albert/model/input"
)

var (
	ErrChoicesAxis     = errors.New("choices axis")
	ErrSequenceTooLong = errors.New("sequence longer than max_position_embeddings")
)

// Inputs gibt die Eingabe-Specs fuer shape zurueck. for_multiple_choice
// erwartet (batch, choices, seq), alle anderen Architekturen (batch, seq).
func (m *Model) Inputs(shape ...int) ([]input.Spec, error) {
	specs, err := input.BuildInputs(shape...)
	if err != nil {
		return nil, err
	}

	switch choices := len(shape) == 3; {
	case m.config.Architecture == ForMultipleChoice && !choices:
		return nil, fmt.Errorf("%w: %s needs input shape (batch, choices, seq), got %v", ErrChoicesAxis, ForMultipleChoice, shape)
	case m.config.Architecture != ForMultipleChoice && choices:
		return nil, fmt.Errorf("%w: %s does not take input shape %v", ErrChoicesAxis, m.config.Architecture, shape)
	}

	if seqLen := shape[len(shape)-1]; seqLen > m.maxPositions {
		return nil, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, seqLen, m.maxPositions)
	}

	return specs, nil
}

// Build bindet die Eingaben fuer shape in ctx und baut den Graphen von m.
// provided nennt die optionalen Eingaben, die als Platzhalter statt ueber
// ihren Default gebunden werden.
func Build(ctx ml.Context, m *Model, shape []int, provided ...string) (*model.Outputs, input.Batch, error) {
	specs, err := m.Inputs(shape...)
	if err != nil {
		return nil, input.Batch{}, err
	}

	batch, err := input.Bind(ctx, specs, provided...)
	if err != nil {
		return nil, input.Batch{}, err
	}

	outputs, err := model.Forward(ctx, m, batch)
	if err != nil {
		return nil, input.Batch{}, err
	}

	return outputs, batch, nil
}
