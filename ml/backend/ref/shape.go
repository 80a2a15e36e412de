// shape.go - Form-Inferenz fuer Graph-Knoten
// Enthält: Broadcasting, Reshape-Aufloesung, Slice-Laengen, Strides
//
// Dimensionen mit -1 sind zur Build-Zeit unbekannt. Die Inferenz bleibt
// konservativ: was nicht sicher bestimmbar ist, bleibt -1.

package ref

import (
	"fmt"
	"slices"
)

// numel gibt die Anzahl der Elemente zurueck, -1 wenn unbekannt
func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

// static prueft ob alle Dimensionen bekannt sind
func static(shape []int) bool {
	return !slices.Contains(shape, -1)
}

// broadcastShapes berechnet die Ergebnisform zweier Operanden (rechtsbuendig)
func broadcastShapes(a, b []int) ([]int, error) {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := range n {
		da, db := 1, 1
		if j := len(a) - n + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - n + i; j >= 0 {
			db = b[j]
		}

		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		case da == -1:
			out[i] = db
		case db == -1:
			out[i] = da
		default:
			return nil, fmt.Errorf("shapes %v and %v are not broadcastable", a, b)
		}
	}
	return out, nil
}

// resolveReshape loest ein -1 im Ziel gegen die Quellform auf.
// Bei unbekannter Quellform bleibt das -1 erhalten.
func resolveReshape(src, target []int) ([]int, error) {
	out := slices.Clone(target)
	infer := -1
	known := 1
	for i, d := range target {
		switch {
		case d == -1 && infer >= 0:
			return nil, fmt.Errorf("reshape %v: only one dimension may be inferred", target)
		case d == -1:
			infer = i
		case d <= 0:
			return nil, fmt.Errorf("reshape %v: invalid dimension %d", target, d)
		default:
			known *= d
		}
	}

	total := numel(src)
	if total < 0 {
		return out, nil
	}

	if infer < 0 {
		if known != total {
			return nil, fmt.Errorf("cannot reshape %v into %v", src, target)
		}
		return out, nil
	}

	if known == 0 || total%known != 0 {
		return nil, fmt.Errorf("cannot reshape %v into %v", src, target)
	}
	out[infer] = total / known
	return out, nil
}

// sliceLen berechnet die Laenge eines Slices [low, high) mit Schrittweite step
func sliceLen(dim, low, high, step int) int {
	if dim >= 0 {
		high = min(high, dim)
	}
	if high <= low {
		return 0
	}
	return (high - low + step - 1) / step
}

// strides berechnet row-major Strides
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// axis normalisiert negative Achsen
func axis(dim, rank int) int {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("axis %d out of range for rank %d", dim, rank))
	}
	return dim
}
