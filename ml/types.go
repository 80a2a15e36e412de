// types.go - Datentypen und Konstanten fuer ML-Operationen
// Dieses Modul definiert grundlegende Typen wie DType und Array.
package ml

import "slices"

// DType represents the data type of tensor elements.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
	DTypeBF16
	DTypeI32
)

// String gibt den Namen des Datentyps zurueck
func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	case DTypeBF16:
		return "bf16"
	case DTypeI32:
		return "i32"
	default:
		return "other"
	}
}

// Array ist ein ausgewerteter Tensor mit konkreter Form.
// Ganzzahlige Tensoren werden ebenfalls als float32 gespeichert.
type Array struct {
	Shape []int
	Data  []float32
}

// NewArray erstellt ein Array aus Daten und Form
func NewArray(data []float32, shape ...int) Array {
	return Array{Shape: slices.Clone(shape), Data: data}
}

// IntArray erstellt ein Array aus int32-Daten
func IntArray(data []int32, shape ...int) Array {
	f := make([]float32, len(data))
	for i, v := range data {
		f[i] = float32(v)
	}
	return NewArray(f, shape...)
}

// Ints gibt die Daten als int32 zurueck
func (a Array) Ints() []int32 {
	s := make([]int32, len(a.Data))
	for i, v := range a.Data {
		s[i] = int32(v)
	}
	return s
}

// Len gibt die Anzahl der Elemente zurueck
func (a Array) Len() int {
	return mul(a.Shape...)
}
