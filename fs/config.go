// Package fs beschreibt die Schnittstelle zu Modell-Metadaten.
//
// Config ist der gemeinsame Nenner zwischen GGUF-Metadaten (ggml.KV) und
// den Modellen: ein Modell liest seine Hyperparameter ausschliesslich
// ueber diese Getter.
package fs

import "iter"

// Config liest typisierte Metadaten. Schluessel ohne "general."-Prefix
// werden relativ zur Architektur aufgeloest.
type Config interface {
	Architecture() string
	String(string, ...string) string
	Uint(string, ...uint32) uint32
	Float(string, ...float32) float32
	Bool(string, ...bool) bool

	Strings(string, ...[]string) []string
	Ints(string, ...[]int32) []int32
	Floats(string, ...[]float32) []float32

	Len() int
	Keys() iter.Seq[string]
	Value(key string) any
}
