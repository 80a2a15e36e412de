// Package nn enthaelt die Bausteine der Modelle: Linear, LayerNorm, Embedding.
//
// Die Layer besitzen keine eigenen Gewichte, sondern fordern sie beim
// Allocate ueber einen Allocator an. So entscheidet der Aufrufer, ob ein
// Gewicht neu erzeugt oder ein bereits vorhandenes wiederverwendet wird.
package nn

import "github.com/ollama/albert/ml"

// Init beschreibt die Initialisierung eines neuen Gewichts
type Init int

const (
	// InitNormal zieht aus N(0, initializer_range)
	InitNormal Init = iota
	InitZeros
	InitOnes
)

func (i Init) String() string {
	switch i {
	case InitZeros:
		return "zeros"
	case InitOnes:
		return "ones"
	default:
		return "normal"
	}
}

// Allocator liefert das Gewicht name eines Layers
type Allocator interface {
	Param(name string, init Init, shape ...int) ml.Tensor
}

// Layer wird von model.Populate mit den Dimensionen aus dem dims-Tag allokiert
type Layer interface {
	Allocate(a Allocator, dims ...int)
}

// Linear berechnet x W^T + b. Weight hat die Form (out, in).
type Linear struct {
	Weight ml.Tensor
	Bias   ml.Tensor
}

// Allocate erwartet dims = (out, in)
func (m *Linear) Allocate(a Allocator, dims ...int) {
	m.Weight = a.Param("weight", InitNormal, dims[0], dims[1])
	m.Bias = a.Param("bias", InitZeros, dims[0])
}

func (m *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	t = m.Weight.Mulmat(ctx, t)
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}

	return t
}

// LayerNorm normalisiert ueber die letzte Dimension
type LayerNorm struct {
	Weight ml.Tensor
	Bias   ml.Tensor
}

// Allocate erwartet dims = (n)
func (m *LayerNorm) Allocate(a Allocator, dims ...int) {
	m.Weight = a.Param("weight", InitOnes, dims[0])
	m.Bias = a.Param("bias", InitZeros, dims[0])
}

func (m *LayerNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}

// Embedding ist eine Lookup-Tabelle der Form (rows, dim)
type Embedding struct {
	Weight ml.Tensor
}

// Allocate erwartet dims = (rows, dim)
func (m *Embedding) Allocate(a Allocator, dims ...int) {
	m.Weight = a.Param("weight", InitNormal, dims[0], dims[1])
}

func (m *Embedding) Forward(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	return m.Weight.Rows(ctx, ids)
}
