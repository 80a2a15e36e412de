// context.go - Context-Struktur und Kern-Methoden
// Enthaelt: Context struct, Input(), Parameter(), Forward(), Compute(), Fingerprint(), Close()

package ref

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/ollama/albert/logutil"
	"github.com/ollama/albert/ml"
)

// Context zeichnet einen Graphen auf und wertet ihn aus
type Context struct {
	b *Backend

	nodes  []*Tensor
	inputs map[string]*Tensor

	// forward sind die als Ausgaben markierten Knoten
	forward []*Tensor
}

// Input deklariert einen benannten Platzhalter
func (c *Context) Input(name string, dtype ml.DType, shape ...int) ml.Tensor {
	if _, ok := c.inputs[name]; ok {
		panic(fmt.Sprintf("input %q already declared", name))
	}

	t := record(c, opInput, dtype, slices.Clone(shape))
	t.name = name
	c.inputs[name] = t
	return t
}

// Parameter erstellt einen benannten, gespeicherten Gewichtstensor
func (c *Context) Parameter(name string, s []float32, shape ...int) ml.Tensor {
	t := c.constant(s, ml.DTypeF32, shape)
	t.op = opParam
	t.name = name
	logutil.Trace("parameter", "tensor", t)
	return t
}

// FromFloats erstellt einen konstanten float32-Tensor
func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	return c.constant(s, ml.DTypeF32, shape)
}

// FromInts erstellt einen konstanten int32-Tensor
func (c *Context) FromInts(s []int32, shape ...int) ml.Tensor {
	f := make([]float32, len(s))
	for i, v := range s {
		f[i] = float32(v)
	}
	return c.constant(f, ml.DTypeI32, shape)
}

func (c *Context) constant(s []float32, dtype ml.DType, shape []int) *Tensor {
	if !static(shape) || numel(shape) != len(s) {
		panic(fmt.Sprintf("constant: %d values do not match shape %v", len(s), shape))
	}

	t := record(c, opConst, dtype, slices.Clone(shape))
	t.data = s
	return t
}

// OnesLike erstellt Einsen in der Laufzeit-Form von t
func (c *Context) OnesLike(t ml.Tensor) ml.Tensor {
	return record(c, opOnesLike, t.DType(), t.Shape(), cast(t))
}

// ZerosLike erstellt Nullen in der Laufzeit-Form von t
func (c *Context) ZerosLike(t ml.Tensor) ml.Tensor {
	return record(c, opZerosLike, t.DType(), t.Shape(), cast(t))
}

// ArangeLike fuellt die Laufzeit-Form von t mit 0, 1, 2, ... entlang dim
func (c *Context) ArangeLike(t ml.Tensor, dim int) ml.Tensor {
	out := record(c, opArangeLike, t.DType(), t.Shape(), cast(t))
	out.attrs = []int{axis(dim, len(t.Shape()))}
	return out
}

// Forward markiert Tensoren als Ausgaben des Graphen
func (c *Context) Forward(tensors ...ml.Tensor) ml.Context {
	for _, t := range tensors {
		if !slices.Contains(c.forward, cast(t)) {
			c.forward = append(c.forward, cast(t))
		}
	}
	return c
}

// Len gibt die Anzahl der aufgezeichneten Knoten zurueck
func (c *Context) Len() int {
	return len(c.nodes)
}

// Fingerprint hasht die Struktur des Graphen: Operationen, Formen,
// Kanten, Attribute und Namen. Gewichtswerte gehen nicht ein.
func (c *Context) Fingerprint() uint64 {
	h := xxhash.New()
	buf := make([]byte, 8)
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
		h.Write(buf)
	}

	for _, t := range c.nodes {
		writeInt(int(t.op))
		writeInt(int(t.dtype))
		h.WriteString(t.name)
		writeInt(len(t.shape))
		for _, d := range t.shape {
			writeInt(d)
		}
		writeInt(len(t.src))
		for _, s := range t.src {
			writeInt(s.id)
		}
		for _, a := range t.attrs {
			writeInt(a)
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(t.f))
		h.Write(buf)
	}

	return h.Sum64()
}

// Compute wertet die Tensoren ts aus. feeds bindet die Platzhalter.
// Formfehler innerhalb der Kernel loesen wie im Engine-Code einen panic aus.
func (c *Context) Compute(feeds map[string]ml.Array, ts ...ml.Tensor) ([]ml.Array, error) {
	if len(ts) == 0 {
		for _, t := range c.forward {
			ts = append(ts, t)
		}
	}

	needed := make([]bool, len(c.nodes))
	var mark func(t *Tensor)
	mark = func(t *Tensor) {
		if needed[t.id] {
			return
		}
		needed[t.id] = true
		for _, s := range t.src {
			mark(s)
		}
	}

	for _, t := range ts {
		tt := cast(t)
		if tt.c != c {
			return nil, fmt.Errorf("tensor %s belongs to another context", tt)
		}
		mark(tt)
	}

	e := evaluator{
		values:   make([]ml.Array, len(c.nodes)),
		training: c.b.params.Training,
		rng:      rand.New(rand.NewPCG(c.b.params.Seed, c.b.params.Seed^0x9e3779b97f4a7c15)),
	}

	for _, t := range c.nodes {
		if !needed[t.id] {
			continue
		}

		if t.op == opInput {
			a, err := bindInput(t, feeds)
			if err != nil {
				return nil, err
			}
			e.values[t.id] = a
			continue
		}

		e.values[t.id] = e.eval(t)
	}

	out := make([]ml.Array, len(ts))
	for i, t := range ts {
		out[i] = e.values[cast(t).id]
	}
	return out, nil
}

// bindInput prueft einen Feed gegen die deklarierte Form
func bindInput(t *Tensor, feeds map[string]ml.Array) (ml.Array, error) {
	a, ok := feeds[t.name]
	if !ok {
		return ml.Array{}, fmt.Errorf("missing feed for input %q", t.name)
	}

	if len(a.Shape) != len(t.shape) {
		return ml.Array{}, fmt.Errorf("input %q: rank %d, want %d", t.name, len(a.Shape), len(t.shape))
	}

	for i, d := range t.shape {
		if d >= 0 && a.Shape[i] != d {
			return ml.Array{}, fmt.Errorf("input %q: shape %v does not match %v", t.name, a.Shape, t.shape)
		}
	}

	if a.Len() != len(a.Data) {
		return ml.Array{}, fmt.Errorf("input %q: %d values for shape %v", t.name, len(a.Data), a.Shape)
	}

	return a, nil
}

// Close gibt den Graphen frei
func (c *Context) Close() {
	c.nodes = nil
	c.inputs = nil
	c.forward = nil
}
