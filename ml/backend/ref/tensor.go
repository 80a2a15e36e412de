// tensor.go - Tensor-Struktur und Aufzeichnung der Operationen
// Enthält: Tensor struct, Shape, DType, alle ml.Tensor Operationen
//
// Jede Operation haengt einen Knoten an den Graphen des Kontexts an und
// berechnet dessen Form. Ausgefuehrt wird erst in Context.Compute.

package ref

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ollama/albert/ml"
)

type op int

const (
	opInput op = iota
	opParam
	opConst
	opOnesLike
	opZerosLike
	opArangeLike
	opCast
	opAdd
	opMul
	opScale
	opMulmat
	opSoftmax
	opLayerNorm
	opTanh
	opGELU
	opGELUApprox
	opQuickGELU
	opRELU
	opSILU
	opSigmoid
	opDropout
	opReshape
	opReshapeLike
	opPermute
	opSlice
	opRows
	opSqr
	opStep
)

var opNames = [...]string{
	"input", "param", "const", "ones_like", "zeros_like", "arange_like", "cast",
	"add", "mul", "scale", "mulmat", "softmax", "layer_norm",
	"tanh", "gelu", "gelu_approx", "quick_gelu", "relu", "silu", "sigmoid",
	"dropout", "reshape", "reshape_like", "permute", "slice", "rows",
	"sqr", "step",
}

func (o op) String() string {
	return opNames[o]
}

// Tensor ist ein Knoten im aufgezeichneten Graphen
type Tensor struct {
	c     *Context
	id    int
	op    op
	name  string
	src   []*Tensor
	shape []int
	dtype ml.DType

	// data haelt die Werte von Parametern und Konstanten
	data []float32

	// attrs und f sind operationsabhaengige Attribute
	attrs []int
	f     float64
}

// LogValue gibt den Tensor als slog-Wert zurück
func (t *Tensor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", t.name),
		slog.String("op", t.op.String()),
		slog.Any("shape", t.shape),
	)
}

// Name gibt den Namen des Tensors zurueck
func (t *Tensor) Name() string {
	return t.name
}

// Dim gibt die Größe einer Dimension zurück, -1 wenn erst zur Laufzeit bekannt
func (t *Tensor) Dim(n int) int {
	return t.shape[axis(n, len(t.shape))]
}

// Shape gibt die Form des Tensors zurück
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// DType gibt den Datentyp des Tensors zurück
func (t *Tensor) DType() ml.DType {
	return t.dtype
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.op, t.shape)
}

// record haengt einen neuen Knoten an den Kontext an
func record(ctx ml.Context, o op, dtype ml.DType, shape []int, src ...*Tensor) *Tensor {
	c := ctx.(*Context)
	for _, s := range src {
		if s.c != c {
			panic(fmt.Sprintf("%s: operand %s belongs to another context", o, s))
		}
	}

	t := &Tensor{c: c, id: len(c.nodes), op: o, src: src, shape: shape, dtype: dtype}
	c.nodes = append(c.nodes, t)
	return t
}

func cast(t ml.Tensor) *Tensor {
	return t.(*Tensor)
}

func (t *Tensor) binary(ctx ml.Context, o op, t2 ml.Tensor) ml.Tensor {
	other := cast(t2)
	shape, err := broadcastShapes(t.shape, other.shape)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", o, err))
	}
	return record(ctx, o, t.dtype, shape, t, other)
}

func (t *Tensor) unary(ctx ml.Context, o op) ml.Tensor {
	return record(ctx, o, t.dtype, slices.Clone(t.shape), t)
}

// Cast konvertiert den Datentyp
func (t *Tensor) Cast(ctx ml.Context, dtype ml.DType) ml.Tensor {
	return record(ctx, opCast, dtype, slices.Clone(t.shape), t)
}

// Add addiert elementweise mit Broadcasting
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(ctx, opAdd, t2)
}

// Mul multipliziert elementweise mit Broadcasting
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(ctx, opMul, t2)
}

// Scale skaliert den Tensor mit einem Skalar
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	out := record(ctx, opScale, t.dtype, slices.Clone(t.shape), t)
	out.f = s
	return out
}

// Mulmat berechnet t2 x t^T ueber die letzten beiden Dimensionen.
// t hat die Form (..., n, k), t2 die Form (..., m, k), das Ergebnis (..., m, n).
// Ein zweidimensionales t wird ueber alle Batch-Dimensionen von t2 geteilt.
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	b := cast(t2)
	if len(t.shape) < 2 || len(b.shape) < 2 {
		panic(fmt.Sprintf("mulmat: rank too small %v x %v", t.shape, b.shape))
	}

	k, kb := t.shape[len(t.shape)-1], b.shape[len(b.shape)-1]
	if k != kb && k >= 0 && kb >= 0 {
		panic(fmt.Sprintf("mulmat: inner dimensions differ %v x %v", t.shape, b.shape))
	}

	if len(t.shape) > 2 {
		if len(t.shape) != len(b.shape) {
			panic(fmt.Sprintf("mulmat: batch dimensions differ %v x %v", t.shape, b.shape))
		}
		if _, err := broadcastShapes(t.shape[:len(t.shape)-2], b.shape[:len(b.shape)-2]); err != nil {
			panic(fmt.Sprintf("mulmat: %v", err))
		}
	}

	shape := slices.Clone(b.shape)
	shape[len(shape)-1] = t.shape[len(t.shape)-2]
	return record(ctx, opMulmat, ml.DTypeF32, shape, t, b)
}

// Sqr quadriert elementweise
func (t *Tensor) Sqr(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opSqr)
}

// Step ist 1 fuer Elemente > 0, sonst 0
func (t *Tensor) Step(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opStep)
}

// Softmax berechnet Softmax ueber die letzte Dimension
func (t *Tensor) Softmax(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opSoftmax)
}

// LayerNorm normalisiert ueber die letzte Dimension
func (t *Tensor) LayerNorm(ctx ml.Context, weight, bias ml.Tensor, eps float32) ml.Tensor {
	src := []*Tensor{t}
	attrs := []int{0, 0}
	if weight != nil {
		src = append(src, cast(weight))
		attrs[0] = 1
	}
	if bias != nil {
		src = append(src, cast(bias))
		attrs[1] = 1
	}

	out := record(ctx, opLayerNorm, t.dtype, slices.Clone(t.shape), src...)
	out.attrs = attrs
	out.f = float64(eps)
	return out
}

// Tanh wendet den Tangens hyperbolicus an
func (t *Tensor) Tanh(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opTanh)
}

// GELU wendet die exakte GELU-Aktivierung (erf) an
func (t *Tensor) GELU(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opGELU)
}

// GELUApprox wendet die tanh-Naeherung der GELU an
func (t *Tensor) GELUApprox(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opGELUApprox)
}

// QuickGELU wendet x * sigmoid(1.702x) an
func (t *Tensor) QuickGELU(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opQuickGELU)
}

// RELU wendet ReLU an
func (t *Tensor) RELU(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opRELU)
}

// SILU wendet SiLU an
func (t *Tensor) SILU(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opSILU)
}

// Sigmoid wendet die Sigmoid-Funktion an
func (t *Tensor) Sigmoid(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, opSigmoid)
}

// Dropout zeichnet einen Dropout-Knoten auf. Bei p == 0 entfaellt der Knoten.
func (t *Tensor) Dropout(ctx ml.Context, p float32) ml.Tensor {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %v out of range", p))
	}
	if p == 0 {
		return t
	}

	out := record(ctx, opDropout, t.dtype, slices.Clone(t.shape), t)
	out.f = float64(p)
	return out
}

// Reshape ändert die Form des Tensors, eine Dimension darf -1 sein
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	resolved, err := resolveReshape(t.shape, shape)
	if err != nil {
		panic(err)
	}

	out := record(ctx, opReshape, t.dtype, resolved, t)
	out.attrs = slices.Clone(shape)
	return out
}

// ReshapeLike übernimmt die Laufzeit-Dimensionen refAxes von ref und haengt tail an.
// Die Form wird erst beim Compute festgelegt.
func (t *Tensor) ReshapeLike(ctx ml.Context, ref ml.Tensor, refAxes []int, tail ...int) ml.Tensor {
	r := cast(ref)
	shape := make([]int, 0, len(refAxes)+len(tail))
	for _, a := range refAxes {
		shape = append(shape, r.shape[axis(a, len(r.shape))])
	}
	shape = append(shape, tail...)

	if numel(shape) >= 0 && numel(t.shape) >= 0 && numel(shape) != numel(t.shape) {
		panic(fmt.Sprintf("reshape_like: cannot reshape %v into %v", t.shape, shape))
	}

	out := record(ctx, opReshapeLike, t.dtype, shape, t, r)
	out.attrs = append(slices.Clone(refAxes), tail...)
	out.f = float64(len(refAxes))
	return out
}

// Permute vertauscht die Dimensionen: Ausgabe-Dimension i ist Eingabe-Dimension order[i]
func (t *Tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	if len(order) != len(t.shape) {
		panic(fmt.Sprintf("permute: order %v does not match rank %d", order, len(t.shape)))
	}

	shape := make([]int, len(order))
	for i, o := range order {
		shape[i] = t.shape[o]
	}

	out := record(ctx, opPermute, t.dtype, shape, t)
	out.attrs = slices.Clone(order)
	return out
}

// Slice schneidet [low, high) mit Schrittweite step entlang dim aus
func (t *Tensor) Slice(ctx ml.Context, dim, low, high, step int) ml.Tensor {
	dim = axis(dim, len(t.shape))
	if step <= 0 {
		panic("slice: step must be positive")
	}

	shape := slices.Clone(t.shape)
	if t.shape[dim] >= 0 {
		shape[dim] = sliceLen(t.shape[dim], low, high, step)
	}

	out := record(ctx, opSlice, t.dtype, shape, t)
	out.attrs = []int{dim, low, high, step}
	return out
}

// Chunk teilt den Tensor entlang dim in Stuecke der Groesse size
func (t *Tensor) Chunk(ctx ml.Context, dim int, size int) []ml.Tensor {
	dim = axis(dim, len(t.shape))
	if t.shape[dim] < 0 {
		panic("chunk: dimension must be known")
	}

	var chunks []ml.Tensor
	for low := 0; low < t.shape[dim]; low += size {
		chunks = append(chunks, t.Slice(ctx, dim, low, min(low+size, t.shape[dim]), 1))
	}
	return chunks
}

// Rows sammelt Zeilen der Tabelle t anhand der Indizes ids
func (t *Tensor) Rows(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("rows: table must be 2-dimensional, got %v", t.shape))
	}

	idx := cast(ids)
	shape := append(slices.Clone(idx.shape), t.shape[1])
	return record(ctx, opRows, t.dtype, shape, t, idx)
}
