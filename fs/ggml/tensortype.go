// tensortype.go - GGML TensorType Definitionen
// Enthält: die exportierbaren Gleitkomma-Typen, Parsing und Groessen

package ggml

import (
	"fmt"
	"strings"
)

// TensorType ist äquivalent zu ggml_type. Nur die unquantisierten
// Gleitkomma-Typen werden geschrieben.
type TensorType uint32

const (
	TensorTypeF32  TensorType = 0
	TensorTypeF16  TensorType = 1
	TensorTypeBF16 TensorType = 30
)

// ParseTensorType parst den Tensortyp aus einem String (f32, f16, bf16)
func ParseTensorType(s string) (TensorType, error) {
	switch strings.ToUpper(s) {
	case "F32":
		return TensorTypeF32, nil
	case "F16":
		return TensorTypeF16, nil
	case "BF16":
		return TensorTypeBF16, nil
	default:
		return 0, fmt.Errorf("unsupported tensor type: %s", s)
	}
}

// TypeSize gibt die Bytes pro Element zurueck
func (t TensorType) TypeSize() uint64 {
	switch t {
	case TensorTypeF32:
		return 4
	case TensorTypeF16, TensorTypeBF16:
		return 2
	default:
		return 0
	}
}

func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeBF16:
		return "BF16"
	default:
		return "unknown"
	}
}
