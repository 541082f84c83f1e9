package sparse

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

type term struct {
	out, a, k, b int
}

// Product is a symbolic plan for a·diag(d)·b. The output pattern is built
// once; Eval rewrites its values in place so pointers handed out by Out stay
// valid across evaluations.
type Product struct {
	a, b  *CSR
	out   *CSR
	terms []term
}

func NewProduct(a, b *CSR) *Product {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(mat.ErrShape)
	}

	marker := make([]int, bc)
	for j := range marker {
		marker[j] = -1
	}
	indptr := make([]int, ar+1)
	var ind []int
	var terms []term
	for i := 0; i < ar; i++ {
		start := len(ind)
		first := len(terms)
		for p := a.Indptr[i]; p < a.Indptr[i+1]; p++ {
			k := a.Ind[p]
			for q := b.Indptr[k]; q < b.Indptr[k+1]; q++ {
				j := b.Ind[q]
				if marker[j] < start {
					marker[j] = len(ind)
					ind = append(ind, j)
				}
				terms = append(terms, term{out: marker[j], a: p, k: k, b: q})
			}
		}
		sortRow(ind[start:], start, terms[first:])
		indptr[i+1] = len(ind)
	}

	return &Product{
		a:     a,
		b:     b,
		out:   &CSR{rows: ar, cols: bc, Indptr: indptr, Ind: ind, Data: make([]float64, len(ind))},
		terms: terms,
	}
}

// sortRow orders one output row by column and remaps term positions.
func sortRow(cols []int, base int, terms []term) {
	perm := make([]int, len(cols))
	for k := range perm {
		perm[k] = k
	}
	sort.Slice(perm, func(x, y int) bool { return cols[perm[x]] < cols[perm[y]] })
	pos := make([]int, len(cols))
	sorted := make([]int, len(cols))
	for newPos, old := range perm {
		pos[old] = base + newPos
		sorted[newPos] = cols[old]
	}
	copy(cols, sorted)
	for t := range terms {
		terms[t].out = pos[terms[t].out-base]
	}
}

// Eval recomputes the product with the current values of a and b. A nil d
// is the identity.
func (p *Product) Eval(d []float64) {
	if d != nil && len(d) != p.a.cols {
		panic(mat.ErrShape)
	}
	out := p.out.Data
	for i := range out {
		out[i] = 0
	}
	if d == nil {
		for _, t := range p.terms {
			out[t.out] += p.a.Data[t.a] * p.b.Data[t.b]
		}
		return
	}
	for _, t := range p.terms {
		out[t.out] += p.a.Data[t.a] * d[t.k] * p.b.Data[t.b]
	}
}

func (p *Product) Out() *CSR { return p.out }
