// Package ggml - GGUF Decode Operations
//
// Dieses Modul enthaelt Funktionen zum Lesen von GGUF-Dateien:
// - GGML: KV-Paare und Tensor-Metadaten einer Datei
// - Decode: Deserialisierung von Header, KV-Paaren und Tensor-Infos
// - ReadTensor: Laedt die Werte eines Tensors als float32
// - readGGUF*: Lese-Funktionen fuer verschiedene Datentypen
package ggml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FILE_MAGIC_GGUF_LE fuer GGUF Little-Endian
const FILE_MAGIC_GGUF_LE = 0x46554747

// maxGGUFLength begrenzt Strings und Arrays beim Lesen
const maxGGUFLength = 1 << 28

// GGML repraesentiert eine dekodierte GGUF-Datei
type GGML struct {
	Version uint32

	kv      KV
	tensors []*Tensor

	// TensorOffset ist der Beginn des Datenbereichs
	TensorOffset uint64
}

// KV gibt die Key-Value Paare zurueck
func (g *GGML) KV() KV {
	return g.kv
}

// Tensors gibt die Tensor-Infos in Dateireihenfolge zurueck
func (g *GGML) Tensors() []*Tensor {
	return g.tensors
}

// Tensor sucht einen Tensor nach Name
func (g *GGML) Tensor(name string) (*Tensor, bool) {
	for _, t := range g.tensors {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Decode liest Header, KV-Paare und Tensor-Infos einer GGUF-Datei (V2/V3)
func Decode(rs io.ReadSeeker) (*GGML, error) {
	var magic uint32
	if err := binary.Read(rs, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != FILE_MAGIC_GGUF_LE {
		return nil, errors.New("invalid file magic")
	}

	g := &GGML{kv: make(KV)}
	if err := binary.Read(rs, binary.LittleEndian, &g.Version); err != nil {
		return nil, err
	}
	if g.Version < 2 {
		return nil, fmt.Errorf("unsupported gguf version %d", g.Version)
	}

	var counts struct {
		NumTensor uint64
		NumKV     uint64
	}
	if err := binary.Read(rs, binary.LittleEndian, &counts); err != nil {
		return nil, err
	}

	for range counts.NumKV {
		k, err := readGGUFString(rs)
		if err != nil {
			return nil, err
		}

		t, err := readGGUF[uint32](rs)
		if err != nil {
			return nil, err
		}

		v, err := readGGUFValue(rs, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		g.kv[k] = v
	}

	var parameters uint64
	for range counts.NumTensor {
		t, err := readTensorInfo(rs)
		if err != nil {
			return nil, err
		}
		g.tensors = append(g.tensors, t)
		parameters += t.Elements()
	}
	g.kv["general.parameter_count"] = parameters

	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	alignment := g.kv.Uint("general.alignment", 32)
	g.TensorOffset = uint64(offset + ggufPadding(offset, int64(alignment)))
	return g, nil
}

// ReadTensor laedt die Werte von t als float32
func (g *GGML) ReadTensor(r io.ReaderAt, t *Tensor) ([]float32, error) {
	b := make([]byte, t.Size())
	if _, err := r.ReadAt(b, int64(g.TensorOffset+t.Offset)); err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	return DecodeFloats(TensorType(t.Kind), b)
}

func readTensorInfo(r io.Reader) (*Tensor, error) {
	name, err := readGGUFString(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor name: %w", err)
	}

	dims, err := readGGUF[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor dimensions: %w", err)
	}

	// Datei: innerste Dimension zuerst
	shape := make([]uint64, dims)
	for i := range shape {
		shape[len(shape)-i-1], err = readGGUF[uint64](r)
		if err != nil {
			return nil, fmt.Errorf("failed to read tensor shape: %w", err)
		}
	}

	kind, err := readGGUF[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor kind: %w", err)
	}

	offset, err := readGGUF[uint64](r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor offset: %w", err)
	}

	return &Tensor{Name: name, Kind: kind, Offset: offset, Shape: shape}, nil
}

// readGGUF liest einen typisierten Wert aus dem Reader
func readGGUF[T any](r io.Reader) (T, error) {
	var t T
	err := binary.Read(r, binary.LittleEndian, &t)
	return t, err
}

// readGGUFString liest einen String aus dem Reader
func readGGUFString(r io.Reader) (string, error) {
	n, err := readGGUF[uint64](r)
	if err != nil {
		return "", err
	}
	if n > maxGGUFLength {
		return "", fmt.Errorf("string length %d too large", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readGGUFValue(r io.Reader, t uint32) (any, error) {
	switch t {
	case ggufTypeUint8:
		return readGGUF[uint8](r)
	case ggufTypeInt8:
		return readGGUF[int8](r)
	case ggufTypeUint16:
		return readGGUF[uint16](r)
	case ggufTypeInt16:
		return readGGUF[int16](r)
	case ggufTypeUint32:
		return readGGUF[uint32](r)
	case ggufTypeInt32:
		return readGGUF[int32](r)
	case ggufTypeUint64:
		return readGGUF[uint64](r)
	case ggufTypeInt64:
		return readGGUF[int64](r)
	case ggufTypeFloat32:
		return readGGUF[float32](r)
	case ggufTypeFloat64:
		return readGGUF[float64](r)
	case ggufTypeBool:
		return readGGUF[bool](r)
	case ggufTypeString:
		return readGGUFString(r)
	case ggufTypeArray:
		return readGGUFArray(r)
	default:
		return nil, fmt.Errorf("invalid type: %d", t)
	}
}

// readGGUFArray liest Arrays; int32, float32, bool und string werden als Slices
// abgelegt, alle anderen Elementtypen als []any
func readGGUFArray(r io.Reader) (any, error) {
	t, err := readGGUF[uint32](r)
	if err != nil {
		return nil, err
	}

	n, err := readGGUF[uint64](r)
	if err != nil {
		return nil, err
	}
	if n > maxGGUFLength {
		return nil, fmt.Errorf("array length %d too large", n)
	}

	switch t {
	case ggufTypeInt32:
		s := make([]int32, n)
		return s, binary.Read(r, binary.LittleEndian, s)
	case ggufTypeFloat32:
		s := make([]float32, n)
		return s, binary.Read(r, binary.LittleEndian, s)
	case ggufTypeBool:
		s := make([]bool, n)
		return s, binary.Read(r, binary.LittleEndian, s)
	case ggufTypeString:
		s := make([]string, n)
		for i := range s {
			if s[i], err = readGGUFString(r); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		s := make([]any, n)
		for i := range s {
			if s[i], err = readGGUFValue(r, t); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}
