// Modul: errors.go
// Beschreibung: Fehler der Konfiguration
// Hauptstrukturen:
//   - ConfigError: Fehler mit betroffenem Feld, Wert und Vorschlag
//   - suggest: naechster bekannter Name per Levenshtein-Distanz

package albert

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/agnivade/levenshtein"
)

// Fehler-Definitionen
var (
	ErrUnknownField        = errors.New("unknown field")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrUnknownValue        = errors.New("unknown value")
	ErrInvalidValue        = errors.New("invalid value")
	ErrUnknownArchitecture = errors.New("unknown architecture")
	ErrUnsupported         = errors.New("not supported")
)

// ConfigError repraesentiert einen Fehler beim Laden oder Pruefen der Konfiguration
type ConfigError struct {
	Field string // Betroffenes Feld
	Value any    // Abgelehnter Wert
	Err   error  // Urspruenglicher Fehler

	// Suggestion ist der naechstliegende bekannte Name, falls vorhanden
	Suggestion string
}

// Error implementiert das error Interface
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config %s: %v", e.Field, e.Err)
	if e.Value != nil {
		msg += fmt.Sprintf(" (%v)", e.Value)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean %q?", e.Suggestion)
	}
	return msg
}

// Unwrap ermoeglicht errors.Is/As
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// suggest gibt den aehnlichsten Kandidaten zurueck, wenn er nah genug ist
func suggest(s string, candidates []string) string {
	best, score := "", len(s)/2+2
	for _, c := range slices.Sorted(slices.Values(candidates)) {
		if d := levenshtein.ComputeDistance(s, c); d < score {
			best, score = c, d
		}
	}
	return best
}

func keys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
