// Package model - Gewichtsregister
//
// Dieses Modul enthaelt das explizite Register aller Modellgewichte:
// - Address: deterministischer Schluessel eines Gewichts
// - Registry: Lookup-or-create; gleiche Adresse liefert denselben Tensor
// - Weight: gespeichertes Gewicht mit Form, Werten und Nutzungszaehler
// - Tensors: Export als GGUF-Tensoren

package model

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/v2/lists/arraylist"

	"github.com/ollama/albert/fs/ggml"
	"github.com/ollama/albert/logutil"
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
)

// NoIndex markiert Adressen ohne Gruppen- oder Inner-Index
const NoIndex = -1

// baseScopes liegen unterhalb des Modell-Prefix ("albert.")
var baseScopes = []string{"embeddings", "encoder", "pooler"}

// Address identifiziert ein Gewicht. Logische Layer derselben Gruppe
// haben dieselbe Adresse und teilen sich damit den Speicher.
type Address struct {
	Scope string
	Group int
	Inner int
	Role  string
	Param string
}

// At erstellt eine Adresse ohne Gruppen-Index
func At(scope string) Address {
	return Address{Scope: scope, Group: NoIndex, Inner: NoIndex}
}

// InGroup erstellt die Adresse des inneren Layers inner der Gruppe group
func InGroup(scope string, group, inner int) Address {
	return Address{Scope: scope, Group: group, Inner: inner}
}

// Name gibt den Checkpoint-Pfad des Gewichts zurueck, z.B.
// albert.encoder.albert_layer_groups.0.albert_layers.1.attention.query.weight
func (a Address) Name(prefix string) string {
	var parts []string
	if prefix != "" && slices.Contains(baseScopes, a.Scope) {
		parts = append(parts, prefix)
	}

	parts = append(parts, a.Scope)
	if a.Group != NoIndex {
		parts = append(parts, "albert_layer_groups", strconv.Itoa(a.Group))
	}
	if a.Inner != NoIndex {
		parts = append(parts, "albert_layers", strconv.Itoa(a.Inner))
	}
	if a.Role != "" {
		parts = append(parts, a.Role)
	}
	if a.Param != "" {
		parts = append(parts, a.Param)
	}

	return strings.Join(parts, ".")
}

func (a Address) String() string {
	return a.Name("")
}

// Weight ist ein gespeichertes Gewicht
type Weight struct {
	Address Address
	Name    string
	Shape   []int
	Init    nn.Init
	Data    []float32
	Tensor  ml.Tensor

	// Uses zaehlt die Zugriffe, inklusive des ersten
	Uses int
}

// Elements gibt die Anzahl der Werte zurueck
func (w *Weight) Elements() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}

// Registry ist das Register aller Gewichte eines Graphen
type Registry struct {
	ctx    ml.Context
	prefix string
	std    float32
	rng    *rand.Rand

	weights map[Address]*Weight
	order   *arraylist.List[*Weight]
	hits    int
}

// NewRegistry erstellt ein Register, das Gewichte in ctx anlegt. Neue
// Gewichte werden aus N(0, std) mit dem gegebenen Seed gezogen.
func NewRegistry(ctx ml.Context, prefix string, std float32, seed uint64) *Registry {
	return &Registry{
		ctx:     ctx,
		prefix:  prefix,
		std:     std,
		rng:     rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
		weights: make(map[Address]*Weight),
		order:   arraylist.New[*Weight](),
	}
}

// GetOrCreate liefert das Gewicht an addr. Beim ersten Zugriff wird es
// mit init angelegt, danach wird derselbe Tensor zurueckgegeben. Eine
// abweichende Form bei einem spaeteren Zugriff ist ein Programmierfehler.
func (r *Registry) GetOrCreate(addr Address, init nn.Init, shape ...int) ml.Tensor {
	if w, ok := r.weights[addr]; ok {
		if !slices.Equal(w.Shape, shape) {
			panic(fmt.Sprintf("weight %s: shape %v, requested %v", w.Name, w.Shape, shape))
		}

		w.Uses++
		r.hits++
		logutil.Trace("reuse weight", "name", w.Name, "uses", w.Uses)
		return w.Tensor
	}

	w := &Weight{
		Address: addr,
		Name:    addr.Name(r.prefix),
		Shape:   slices.Clone(shape),
		Init:    init,
		Uses:    1,
	}
	w.Data = r.initialize(init, w.Elements())
	w.Tensor = r.ctx.Parameter(w.Name, w.Data, shape...)

	r.weights[addr] = w
	r.order.Add(w)
	logutil.Trace("allocate weight", "name", w.Name, "shape", shape, "init", init)
	return w.Tensor
}

func (r *Registry) initialize(init nn.Init, n int) []float32 {
	data := make([]float32, n)
	switch init {
	case nn.InitOnes:
		for i := range data {
			data[i] = 1
		}
	case nn.InitNormal:
		for i := range data {
			data[i] = float32(r.rng.NormFloat64()) * r.std
		}
	}
	return data
}

// Lookup gibt das Gewicht an addr zurueck, ohne es anzulegen
func (r *Registry) Lookup(addr Address) (*Weight, bool) {
	w, ok := r.weights[addr]
	return w, ok
}

// Len gibt die Anzahl der verschiedenen Gewichte zurueck
func (r *Registry) Len() int {
	return r.order.Size()
}

// Hits gibt die Anzahl der Zugriffe zurueck, die ein vorhandenes Gewicht lieferten
func (r *Registry) Hits() int {
	return r.hits
}

// Weights gibt alle Gewichte in Anlage-Reihenfolge zurueck
func (r *Registry) Weights() []*Weight {
	return r.order.Values()
}

// ParameterCount zaehlt die Werte aller Gewichte, deren Adresse match erfuellt.
// Ohne match werden alle gezaehlt.
func (r *Registry) ParameterCount(match ...func(Address) bool) int {
	var n int
	for _, w := range r.order.Values() {
		if len(match) > 0 && !match[0](w.Address) {
			continue
		}
		n += w.Elements()
	}
	return n
}

// Groups gibt die Gruppen-Indizes zurueck, fuer die Gewichte existieren
func (r *Registry) Groups() []int {
	var groups []int
	for _, w := range r.order.Values() {
		if w.Address.Group != NoIndex && !slices.Contains(groups, w.Address.Group) {
			groups = append(groups, w.Address.Group)
		}
	}
	slices.Sort(groups)
	return groups
}

// Tensors gibt alle Gewichte als GGUF-Tensoren im Typ kind zurueck
func (r *Registry) Tensors(kind ggml.TensorType) ([]*ggml.Tensor, error) {
	ts := make([]*ggml.Tensor, 0, r.order.Size())
	for _, w := range r.order.Values() {
		t, err := ggml.NewTensor(w.Name, kind, w.Data, w.Shape...)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}

	slog.Debug("export weights", "count", len(ts), "type", kind)
	return ts, nil
}

// allocator bindet eine Basisadresse und eine Rolle an das Register
type allocator struct {
	r    *Registry
	addr Address
}

func (a allocator) Param(name string, init nn.Init, shape ...int) ml.Tensor {
	addr := a.addr
	addr.Param = name
	return a.r.GetOrCreate(addr, init, shape...)
}
