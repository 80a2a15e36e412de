// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und Compute-Kontexte.
//
// Formen sind row-major in der Reihenfolge (batch, sequence, channel).
// Eine Dimension von -1 ist zur Build-Zeit unbekannt und wird erst beim
// Compute aus den gebundenen Eingaben aufgeloest.
package ml

// Context represents a graph-building context for tensor operations.
type Context interface {
	// Input declares a named placeholder that is bound at compute time.
	Input(name string, dtype DType, shape ...int) Tensor

	// Parameter creates a named, stored weight tensor.
	Parameter(name string, s []float32, shape ...int) Tensor

	FromFloats(s []float32, shape ...int) Tensor
	FromInts(s []int32, shape ...int) Tensor

	// OnesLike and ZerosLike take their shape from t when the graph runs.
	OnesLike(t Tensor) Tensor
	ZerosLike(t Tensor) Tensor

	// ArangeLike fills a tensor shaped like t with 0, 1, 2, ... along dim.
	ArangeLike(t Tensor, dim int) Tensor

	Forward(...Tensor) Context

	// Compute evaluates ts with the placeholders bound to feeds.
	Compute(feeds map[string]Array, ts ...Tensor) ([]Array, error)

	// Fingerprint hashes the structure of the graph recorded so far.
	Fingerprint() uint64

	Close()
}

// Tensor represents a node of the computation graph.
type Tensor interface {
	Name() string
	Dim(n int) int
	Shape() []int
	DType() DType
	Cast(ctx Context, dtype DType) Tensor

	Add(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor
	Scale(ctx Context, s float64) Tensor
	Sqr(ctx Context) Tensor

	// Step is 1 where t > 0 and 0 elsewhere.
	Step(ctx Context) Tensor

	// Mulmat computes t2 x t^T over the last two dimensions.
	Mulmat(ctx Context, t2 Tensor) Tensor

	Softmax(ctx Context) Tensor
	LayerNorm(ctx Context, weight, bias Tensor, eps float32) Tensor

	Tanh(ctx Context) Tensor
	GELU(ctx Context) Tensor
	GELUApprox(ctx Context) Tensor
	QuickGELU(ctx Context) Tensor
	RELU(ctx Context) Tensor
	SILU(ctx Context) Tensor
	Sigmoid(ctx Context) Tensor

	// Dropout zeroes elements with probability p when the graph runs in training mode.
	Dropout(ctx Context, p float32) Tensor

	Reshape(ctx Context, shape ...int) Tensor

	// ReshapeLike reshapes t to ref's runtime dims at refAxes followed by tail.
	ReshapeLike(ctx Context, ref Tensor, refAxes []int, tail ...int) Tensor

	Permute(ctx Context, order ...int) Tensor
	Slice(ctx Context, dim, low, high, step int) Tensor
	Chunk(ctx Context, dim int, size int) []Tensor

	// Rows gathers rows of t (a table) indexed by ids.
	Rows(ctx Context, ids Tensor) Tensor
}

// ScaledDotProductAttention computes attention for query t:
//
//	kq := key.Mulmat(ctx, query)
//	kq = kq.Scale(ctx, scale)
//	kq = kq.Add(ctx, mask)
//	kq = kq.Softmax(ctx).Dropout(ctx, dropout)
//	kqv := value.Permute(ctx, 0, 1, 3, 2).Mulmat(ctx, kq)
//
// query, key and value are shaped (batch, heads, sequence, head_dim). It returns
// the context vectors and the attention probabilities after dropout.
func ScaledDotProductAttention(ctx Context, query, key, value, mask Tensor, scale float64, dropout float32) (kqv, probs Tensor) {
	kq := key.Mulmat(ctx, query)
	kq = kq.Scale(ctx, scale)
	if mask != nil {
		kq = kq.Add(ctx, mask)
	}

	probs = kq.Softmax(ctx).Dropout(ctx, dropout)
	kqv = value.Permute(ctx, 0, 1, 3, 2).Mulmat(ctx, probs)
	return kqv, probs
}
