package sparse

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix. Its sparsity pattern is fixed once
// built; only Data is rewritten by the plans in this package.
type CSR struct {
	rows, cols int
	Indptr     []int
	Ind        []int
	Data       []float64
}

var _ mat.Matrix = (*CSR)(nil)

func NewCSR(rows, cols int, indptr, ind []int, data []float64) *CSR {
	if len(indptr) != rows+1 || len(ind) != len(data) || indptr[rows] != len(ind) {
		panic(mat.ErrShape)
	}
	return &CSR{rows: rows, cols: cols, Indptr: indptr, Ind: ind, Data: data}
}

// Zeros returns an r×c matrix with no stored entries.
func Zeros(r, c int) *CSR {
	return &CSR{rows: r, cols: c, Indptr: make([]int, r+1)}
}

func Identity(n int) *CSR {
	return Diag(ones(n))
}

func Diag(d []float64) *CSR {
	n := len(d)
	m := &CSR{rows: n, cols: n, Indptr: make([]int, n+1), Ind: make([]int, n), Data: make([]float64, n)}
	for i := 0; i < n; i++ {
		m.Indptr[i+1] = i + 1
		m.Ind[i] = i
		m.Data[i] = d[i]
	}
	return m
}

func (m *CSR) Dims() (int, int) { return m.rows, m.cols }

func (m *CSR) At(i, j int) float64 {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic(mat.ErrIndexOutOfRange)
	}
	if p := m.find(i, j); p >= 0 {
		return m.Data[p]
	}
	return 0
}

func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

func (m *CSR) NNZ() int { return len(m.Data) }

// find returns the storage position of (i, j) or -1.
func (m *CSR) find(i, j int) int {
	lo, hi := m.Indptr[i], m.Indptr[i+1]
	k := lo + sort.SearchInts(m.Ind[lo:hi], j)
	if k < hi && m.Ind[k] == j {
		return k
	}
	return -1
}

// MulVecTo computes dst = m·x.
func (m *CSR) MulVecTo(dst, x []float64) {
	if len(dst) != m.rows || len(x) != m.cols {
		panic(mat.ErrShape)
	}
	for i := 0; i < m.rows; i++ {
		var s float64
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			s += m.Data[p] * x[m.Ind[p]]
		}
		dst[i] = s
	}
}

// MulVecAddTo computes dst += alpha·m·x.
func (m *CSR) MulVecAddTo(dst []float64, alpha float64, x []float64) {
	if len(dst) != m.rows || len(x) != m.cols {
		panic(mat.ErrShape)
	}
	for i := 0; i < m.rows; i++ {
		var s float64
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			s += m.Data[p] * x[m.Ind[p]]
		}
		dst[i] += alpha * s
	}
}

func (m *CSR) Clone() *CSR {
	return &CSR{
		rows:   m.rows,
		cols:   m.cols,
		Indptr: append([]int(nil), m.Indptr...),
		Ind:    append([]int(nil), m.Ind...),
		Data:   append([]float64(nil), m.Data...),
	}
}

// Scaled returns a copy of m with every entry multiplied by alpha.
func (m *CSR) Scaled(alpha float64) *CSR {
	s := m.Clone()
	for i := range s.Data {
		s.Data[i] *= alpha
	}
	return s
}

func (m *CSR) Transpose() *CSR {
	t := &CSR{rows: m.cols, cols: m.rows, Indptr: make([]int, m.cols+1)}
	for _, j := range m.Ind {
		t.Indptr[j+1]++
	}
	for j := 0; j < m.cols; j++ {
		t.Indptr[j+1] += t.Indptr[j]
	}
	t.Ind = make([]int, len(m.Ind))
	t.Data = make([]float64, len(m.Data))
	next := append([]int(nil), t.Indptr[:m.cols]...)
	for i := 0; i < m.rows; i++ {
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			j := m.Ind[p]
			q := next[j]
			t.Ind[q] = i
			t.Data[q] = m.Data[p]
			next[j]++
		}
	}
	return t
}

// AddToDense accumulates alpha·m into dst with its top-left corner at (r0, c0).
func (m *CSR) AddToDense(dst *mat.Dense, r0, c0 int, alpha float64) {
	for i := 0; i < m.rows; i++ {
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			j := c0 + m.Ind[p]
			dst.Set(r0+i, j, dst.At(r0+i, j)+alpha*m.Data[p])
		}
	}
}

func (m *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	m.AddToDense(d, 0, 0, 1)
	return d
}

// Diagonal returns the main diagonal of a square matrix.
func (m *CSR) Diagonal() []float64 {
	n := min(m.rows, m.cols)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		if p := m.find(i, i); p >= 0 {
			d[i] = m.Data[p]
		}
	}
	return d
}

// MaxAbsRowSum is the infinity norm of m, a Gershgorin bound on its
// spectral radius.
func (m *CSR) MaxAbsRowSum() float64 {
	var best float64
	for i := 0; i < m.rows; i++ {
		var s float64
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			s += math.Abs(m.Data[p])
		}
		best = math.Max(best, s)
	}
	return best
}

// DoNonZero calls fn for every stored entry in row-major order.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			fn(i, m.Ind[p], m.Data[p])
		}
	}
}

// SubMatrix returns rows [r0, r1) of m as a new matrix.
func (m *CSR) SubMatrix(r0, r1 int) *CSR {
	lo, hi := m.Indptr[r0], m.Indptr[r1]
	s := &CSR{rows: r1 - r0, cols: m.cols, Indptr: make([]int, r1-r0+1)}
	for i := r0; i <= r1; i++ {
		s.Indptr[i-r0] = m.Indptr[i] - lo
	}
	s.Ind = append([]int(nil), m.Ind[lo:hi]...)
	s.Data = append([]float64(nil), m.Data[lo:hi]...)
	return s
}

// Add returns alpha·a + beta·b.
func Add(alpha float64, a *CSR, beta float64, b *CSR) *CSR {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(mat.ErrShape)
	}
	t := NewTriplet(ar, ac)
	a.DoNonZero(func(i, j int, v float64) { t.Append(i, j, alpha*v) })
	b.DoNonZero(func(i, j int, v float64) { t.Append(i, j, beta*v) })
	return t.CSR()
}

// Mul returns a·b.
func Mul(a, b *CSR) *CSR {
	p := NewProduct(a, b)
	p.Eval(nil)
	return p.Out()
}

func ones(n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = 1
	}
	return o
}
