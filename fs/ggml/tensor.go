// Package ggml - Tensor Datenstrukturen
//
// Dieses Modul enthaelt Tensor-bezogene Typen und Methoden:
// - Tensor: Einzelner Tensor mit Name, Shape, Kind
// - NewTensor: Tensor aus float32-Werten, kodiert beim Schreiben
// - Elements/Size: Elementanzahl und Bytegroesse
package ggml

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Tensor repraesentiert einen einzelnen GGML-Tensor
type Tensor struct {
	Name   string `json:"name"`
	Kind   uint32 `json:"kind"`
	Offset uint64 `json:"-"`

	// Shape ist die Anzahl der Elemente in jeder Dimension (row-major)
	Shape []uint64 `json:"shape"`

	io.WriterTo `json:"-"`
}

// NewTensor erstellt einen Tensor, dessen Werte beim Schreiben in kind kodiert werden
func NewTensor(name string, kind TensorType, data []float32, shape ...int) (*Tensor, error) {
	if kind.TypeSize() == 0 {
		return nil, fmt.Errorf("%s: unsupported tensor type %d", name, kind)
	}

	dims := make([]uint64, len(shape))
	n := 1
	for i, d := range shape {
		dims[i] = uint64(d)
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%s: %d values do not match shape %v", name, len(data), shape)
	}

	return &Tensor{
		Name:     name,
		Kind:     uint32(kind),
		Shape:    dims,
		WriterTo: floatWriter{kind: kind, data: data},
	}, nil
}

// Elements gibt die Gesamtanzahl der Elemente zurueck
func (t Tensor) Elements() uint64 {
	var count uint64 = 1
	for _, n := range t.Shape {
		count *= n
	}
	return count
}

// Size gibt die Groesse in Bytes zurueck
func (t Tensor) Size() uint64 {
	return t.Elements() * TensorType(t.Kind).TypeSize()
}

// floatWriter kodiert float32-Werte im Zieltyp
type floatWriter struct {
	kind TensorType
	data []float32
}

func (w floatWriter) WriteTo(dst io.Writer) (int64, error) {
	var b []byte
	switch w.kind {
	case TensorTypeF32:
		b = make([]byte, 4*len(w.data))
		for i, v := range w.data {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
		}
	case TensorTypeF16:
		b = make([]byte, 2*len(w.data))
		for i, v := range w.data {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(v).Bits())
		}
	case TensorTypeBF16:
		b = bfloat16.EncodeFloat32(w.data)
	}

	n, err := dst.Write(b)
	return int64(n), err
}

// DecodeFloats dekodiert Tensordaten des Typs kind nach float32
func DecodeFloats(kind TensorType, b []byte) ([]float32, error) {
	switch kind {
	case TensorTypeF32:
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return out, nil
	case TensorTypeF16:
		out := make([]float32, len(b)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
		}
		return out, nil
	case TensorTypeBF16:
		return bfloat16.DecodeFloat32(b), nil
	default:
		return nil, fmt.Errorf("unsupported tensor type %d", kind)
	}
}
