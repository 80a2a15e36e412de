// compute.go - CPU-Kernel fuer die Auswertung des Graphen
// Enthält: evaluator, Broadcasting, Mulmat (BLAS), Normierung, Aktivierungen, Formoperationen

package ref

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ollama/albert/ml"
)

const (
	sqrt2       = float32(math.Sqrt2)
	sqrt2OverPi = float32(0.7978845608028654)
)

// evaluator haelt die Zwischenergebnisse einer Auswertung
type evaluator struct {
	values   []ml.Array
	training bool
	rng      *rand.Rand
}

func (e *evaluator) in(t *Tensor, i int) ml.Array {
	return e.values[t.src[i].id]
}

func (e *evaluator) eval(t *Tensor) ml.Array {
	switch t.op {
	case opParam, opConst:
		return ml.NewArray(t.data, t.shape...)
	case opOnesLike:
		return fill(e.in(t, 0).Shape, 1)
	case opZerosLike:
		return fill(e.in(t, 0).Shape, 0)
	case opArangeLike:
		return arange(e.in(t, 0).Shape, t.attrs[0])
	case opCast:
		if t.dtype == ml.DTypeI32 {
			return unary(e.in(t, 0), func(x float32) float32 { return float32(int32(x)) })
		}
		return unary(e.in(t, 0), func(x float32) float32 { return x })
	case opAdd:
		return broadcast(e.in(t, 0), e.in(t, 1), func(x, y float32) float32 { return x + y })
	case opMul:
		return broadcast(e.in(t, 0), e.in(t, 1), func(x, y float32) float32 { return x * y })
	case opScale:
		s := float32(t.f)
		return unary(e.in(t, 0), func(x float32) float32 { return x * s })
	case opSqr:
		return unary(e.in(t, 0), func(x float32) float32 { return x * x })
	case opStep:
		return unary(e.in(t, 0), func(x float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		})
	case opMulmat:
		return mulmat(e.in(t, 0), e.in(t, 1))
	case opSoftmax:
		return softmax(e.in(t, 0))
	case opLayerNorm:
		return e.layerNorm(t)
	case opTanh:
		return unary(e.in(t, 0), math32.Tanh)
	case opGELU:
		return unary(e.in(t, 0), func(x float32) float32 {
			return 0.5 * x * (1 + float32(math.Erf(float64(x/sqrt2))))
		})
	case opGELUApprox:
		return unary(e.in(t, 0), func(x float32) float32 {
			return 0.5 * x * (1 + math32.Tanh(sqrt2OverPi*(x+0.044715*x*x*x)))
		})
	case opQuickGELU:
		return unary(e.in(t, 0), func(x float32) float32 { return x * sigmoid(1.702*x) })
	case opRELU:
		return unary(e.in(t, 0), func(x float32) float32 { return max(x, 0) })
	case opSILU:
		return unary(e.in(t, 0), func(x float32) float32 { return x * sigmoid(x) })
	case opSigmoid:
		return unary(e.in(t, 0), sigmoid)
	case opDropout:
		return e.dropout(e.in(t, 0), float32(t.f))
	case opReshape:
		a := e.in(t, 0)
		shape, err := resolveReshape(a.Shape, t.attrs)
		if err != nil {
			panic(err)
		}
		return ml.NewArray(a.Data, shape...)
	case opReshapeLike:
		return reshapeLike(e.in(t, 0), e.in(t, 1), t.attrs[:int(t.f)], t.attrs[int(t.f):])
	case opPermute:
		return permute(e.in(t, 0), t.attrs)
	case opSlice:
		return slice(e.in(t, 0), t.attrs[0], t.attrs[1], t.attrs[2], t.attrs[3])
	case opRows:
		return rows(e.in(t, 0), e.in(t, 1))
	default:
		panic(fmt.Sprintf("no kernel for %s", t.op))
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func fill(shape []int, v float32) ml.Array {
	data := make([]float32, numel(shape))
	if v != 0 {
		for i := range data {
			data[i] = v
		}
	}
	return ml.NewArray(data, shape...)
}

func arange(shape []int, dim int) ml.Array {
	st := strides(shape)
	data := make([]float32, numel(shape))
	for i := range data {
		data[i] = float32((i / st[dim]) % shape[dim])
	}
	return ml.NewArray(data, shape...)
}

func unary(a ml.Array, f func(float32) float32) ml.Array {
	out := make([]float32, len(a.Data))
	for i, x := range a.Data {
		out[i] = f(x)
	}
	return ml.NewArray(out, a.Shape...)
}

// broadcastStrides setzt die Strides gebroadcasteter Dimensionen auf 0
func broadcastStrides(src, shape []int) []int {
	s := make([]int, len(shape))
	st := strides(src)
	off := len(shape) - len(src)
	for i := range src {
		if src[i] != 1 {
			s[off+i] = st[i]
		}
	}
	return s
}

func broadcast(a, b ml.Array, f func(x, y float32) float32) ml.Array {
	if slices.Equal(a.Shape, b.Shape) {
		out := make([]float32, len(a.Data))
		for i := range out {
			out[i] = f(a.Data[i], b.Data[i])
		}
		return ml.NewArray(out, a.Shape...)
	}

	shape, err := broadcastShapes(a.Shape, b.Shape)
	if err != nil {
		panic(err)
	}

	sa, sb := broadcastStrides(a.Shape, shape), broadcastStrides(b.Shape, shape)
	out := make([]float32, numel(shape))
	idx := make([]int, len(shape))
	for i := range out {
		var oa, ob int
		for d := range shape {
			oa += idx[d] * sa[d]
			ob += idx[d] * sb[d]
		}
		out[i] = f(a.Data[oa], b.Data[ob])

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return ml.NewArray(out, shape...)
}

// mulmat berechnet b x a^T mit a (..., n, k) und b (..., m, k)
func mulmat(a, b ml.Array) ml.Array {
	ra, rb := len(a.Shape), len(b.Shape)
	n, k := a.Shape[ra-2], a.Shape[ra-1]
	m := b.Shape[rb-2]
	if b.Shape[rb-1] != k {
		panic(fmt.Sprintf("mulmat: inner dimensions differ %v x %v", a.Shape, b.Shape))
	}
	if ra > 2 && !slices.Equal(a.Shape[:ra-2], b.Shape[:rb-2]) {
		panic(fmt.Sprintf("mulmat: batch dimensions differ %v x %v", a.Shape, b.Shape))
	}

	batch := numel(b.Shape[:rb-2])
	shape := slices.Clone(b.Shape)
	shape[rb-1] = n

	out := make([]float32, batch*m*n)
	if m == 0 || n == 0 || k == 0 {
		return ml.NewArray(out, shape...)
	}

	for i := range batch {
		aOff := 0
		if ra > 2 {
			aOff = i * n * k
		}

		blas32.Gemm(blas.NoTrans, blas.Trans, 1,
			blas32.General{Rows: m, Cols: k, Stride: k, Data: b.Data[i*m*k : (i+1)*m*k]},
			blas32.General{Rows: n, Cols: k, Stride: k, Data: a.Data[aOff : aOff+n*k]},
			0,
			blas32.General{Rows: m, Cols: n, Stride: n, Data: out[i*m*n : (i+1)*m*n]},
		)
	}
	return ml.NewArray(out, shape...)
}

func softmax(a ml.Array) ml.Array {
	cols := a.Shape[len(a.Shape)-1]
	out := make([]float32, len(a.Data))
	for off := 0; off < len(a.Data); off += cols {
		row := a.Data[off : off+cols]
		m := math32.Inf(-1)
		for _, x := range row {
			m = max(m, x)
		}

		var sum float32
		for j, x := range row {
			v := math32.Exp(x - m)
			out[off+j] = v
			sum += v
		}
		for j := range row {
			out[off+j] /= sum
		}
	}
	return ml.NewArray(out, a.Shape...)
}

func (e *evaluator) layerNorm(t *Tensor) ml.Array {
	a := e.in(t, 0)
	var w, b []float32
	next := 1
	if t.attrs[0] == 1 {
		w = e.in(t, next).Data
		next++
	}
	if t.attrs[1] == 1 {
		b = e.in(t, next).Data
	}

	eps := float32(t.f)
	cols := a.Shape[len(a.Shape)-1]
	out := make([]float32, len(a.Data))
	for off := 0; off < len(a.Data); off += cols {
		row := a.Data[off : off+cols]
		var mean float32
		for _, x := range row {
			mean += x
		}
		mean /= float32(cols)

		var variance float32
		for _, x := range row {
			variance += (x - mean) * (x - mean)
		}
		variance /= float32(cols)

		inv := 1 / math32.Sqrt(variance+eps)
		for j, x := range row {
			v := (x - mean) * inv
			if w != nil {
				v *= w[j]
			}
			if b != nil {
				v += b[j]
			}
			out[off+j] = v
		}
	}
	return ml.NewArray(out, a.Shape...)
}

// dropout ist nur im Trainingsmodus aktiv (inverted dropout)
func (e *evaluator) dropout(a ml.Array, p float32) ml.Array {
	if !e.training {
		return a
	}

	scale := 1 / (1 - p)
	out := make([]float32, len(a.Data))
	for i, x := range a.Data {
		if e.rng.Float32() >= p {
			out[i] = x * scale
		}
	}
	return ml.NewArray(out, a.Shape...)
}

func reshapeLike(a, ref ml.Array, refAxes, tail []int) ml.Array {
	shape := make([]int, 0, len(refAxes)+len(tail))
	for _, ax := range refAxes {
		shape = append(shape, ref.Shape[axis(ax, len(ref.Shape))])
	}
	shape = append(shape, tail...)

	if numel(shape) != len(a.Data) {
		panic(fmt.Sprintf("reshape_like: cannot reshape %v into %v", a.Shape, shape))
	}
	return ml.NewArray(a.Data, shape...)
}

func permute(a ml.Array, order []int) ml.Array {
	shape := make([]int, len(order))
	for i, o := range order {
		shape[i] = a.Shape[o]
	}

	st := strides(a.Shape)
	out := make([]float32, len(a.Data))
	idx := make([]int, len(shape))
	for i := range out {
		var off int
		for d, o := range order {
			off += idx[d] * st[o]
		}
		out[i] = a.Data[off]

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return ml.NewArray(out, shape...)
}

func slice(a ml.Array, dim, low, high, step int) ml.Array {
	size := a.Shape[dim]
	count := sliceLen(size, low, high, step)
	outer := numel(a.Shape[:dim])
	inner := numel(a.Shape[dim+1:])

	shape := slices.Clone(a.Shape)
	shape[dim] = count

	out := make([]float32, outer*count*inner)
	for o := range outer {
		for j := range count {
			src := (o*size + low + j*step) * inner
			copy(out[(o*count+j)*inner:], a.Data[src:src+inner])
		}
	}
	return ml.NewArray(out, shape...)
}

func rows(table, ids ml.Array) ml.Array {
	vocab, cols := table.Shape[0], table.Shape[1]
	out := make([]float32, len(ids.Data)*cols)
	for i, id := range ids.Data {
		row := int(id)
		if row < 0 || row >= vocab {
			panic(fmt.Sprintf("rows: index %d out of range [0, %d)", row, vocab))
		}
		copy(out[i*cols:], table.Data[row*cols:(row+1)*cols])
	}
	return ml.NewArray(out, append(slices.Clone(ids.Shape), cols)...)
}
