package sparse

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Triplet collects (i, j, v) entries in any order. Duplicates are summed
// when the matrix is compressed.
type Triplet struct {
	rows, cols int
	i, j       []int
	v          []float64
}

func NewTriplet(rows, cols int) *Triplet {
	return &Triplet{rows: rows, cols: cols}
}

func (t *Triplet) Append(i, j int, v float64) {
	if uint(i) >= uint(t.rows) || uint(j) >= uint(t.cols) {
		panic(mat.ErrIndexOutOfRange)
	}
	t.i = append(t.i, i)
	t.j = append(t.j, j)
	t.v = append(t.v, v)
}

func (t *Triplet) Len() int { return len(t.v) }

// CSR compresses the triplet. Explicit zeros are kept so that the pattern
// does not depend on the values.
func (t *Triplet) CSR() *CSR {
	order := make([]int, len(t.v))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if t.i[ka] != t.i[kb] {
			return t.i[ka] < t.i[kb]
		}
		return t.j[ka] < t.j[kb]
	})

	m := &CSR{rows: t.rows, cols: t.cols, Indptr: make([]int, t.rows+1)}
	last := -1
	lastRow := -1
	for _, k := range order {
		if t.i[k] == lastRow && t.j[k] == last {
			m.Data[len(m.Data)-1] += t.v[k]
			continue
		}
		m.Ind = append(m.Ind, t.j[k])
		m.Data = append(m.Data, t.v[k])
		m.Indptr[t.i[k]+1]++
		lastRow, last = t.i[k], t.j[k]
	}
	for r := 0; r < t.rows; r++ {
		m.Indptr[r+1] += m.Indptr[r]
	}
	return m
}
