package grid

import "github.com/san-kum/nsflow/internal/sparse"

func newPairs(d int) [][]*sparse.CSR {
	m := make([][]*sparse.CSR, d)
	for a := range m {
		m[a] = make([]*sparse.CSR, d)
	}
	return m
}

// convection builds the interpolation, averaging and differencing operators
// for stencil width w (1 or 3).
func (o *Operators) convection(w int) (I, A, C [][]*sparse.CSR) {
	I, A, C = newPairs(o.Dim), newPairs(o.Dim), newPairs(o.Dim)
	s := (w - 1) / 2
	for a := 0; a < o.Dim; a++ {
		for b := 0; b < o.Dim; b++ {
			if a == b {
				I[a][b], A[a][b], C[a][b] = o.normalPair(a, s, w)
			} else {
				I[a][b], A[a][b], C[a][b] = o.crossPair(a, b, s, w)
			}
		}
	}
	return I, A, C
}

// normalPair covers the flux of component a through its own direction. The
// flux lives on cell centers.
func (o *Operators) normalPair(a, s, w int) (I, A, C *sparse.CSR) {
	fs := o.fluxShape(a, a)
	cs := o.comp[a]
	off := o.offsets[a]
	tmp := make([]int, o.Dim)

	it := sparse.NewTriplet(fs.size(), o.NV)
	fs.each(func(idx []int, row int) {
		copy(tmp, idx)
		k := idx[a]
		for _, j := range [2]int{k - s, k + 1 + s} {
			f := o.faceAt(a, j)
			if f < 0 {
				continue
			}
			tmp[a] = f
			it.Append(row, off+cs.index(tmp), 0.5)
		}
	})
	I = it.CSR()
	A = I.Clone()

	inv := 1 / (float64(w) * o.H[a])
	ct := sparse.NewTriplet(cs.size(), fs.size())
	cs.each(func(idx []int, row int) {
		copy(tmp, idx)
		pos := o.facePos(a, idx[a])
		tmp[a] = o.cellAt(a, pos+s)
		ct.Append(row, fs.index(tmp), inv)
		tmp[a] = o.cellAt(a, pos-1-s)
		ct.Append(row, fs.index(tmp), -inv)
	})
	return I, A, ct.CSR()
}

// crossPair covers the flux of component a through direction b. The flux
// lives on edges: a-faces along a, b-faces (walls included) along b.
func (o *Operators) crossPair(a, b, s, w int) (I, A, C *sparse.CSR) {
	fs := o.fluxShape(a, b)
	ca, cb := o.comp[a], o.comp[b]
	offA, offB := o.offsets[a], o.offsets[b]
	tmp := make([]int, o.Dim)
	nb := o.Axes[b].N

	it := sparse.NewTriplet(fs.size(), o.NV)
	at := sparse.NewTriplet(fs.size(), o.NV)
	fs.each(func(idx []int, row int) {
		j := idx[b]
		if o.Axes[b].Kind == Wall && (j == 0 || j == nb) {
			if w == 1 {
				o.addWallTap(tapI, a, b, row, 1, j == 0, o.fluxPoint(a, b, idx))
			}
		} else {
			copy(tmp, idx)
			for _, k := range [2]int{j + s, j - 1 - s} {
				tmp[b] = o.cellAt(b, k)
				it.Append(row, offA+ca.index(tmp), 0.5)
			}
		}

		fb := o.faceAt(b, j)
		if fb < 0 {
			return
		}
		copy(tmp, idx)
		tmp[b] = fb
		pos := o.facePos(a, idx[a])
		for _, k := range [2]int{pos + s, pos - 1 - s} {
			tmp[a] = o.cellAt(a, k)
			at.Append(row, offB+cb.index(tmp), 0.5)
		}
	})

	inv := 1 / (float64(w) * o.H[b])
	ct := sparse.NewTriplet(ca.size(), fs.size())
	ca.each(func(idx []int, row int) {
		copy(tmp, idx)
		k := idx[b]
		tmp[b] = o.fluxPos(b, k+1+s)
		ct.Append(row, fs.index(tmp), inv)
		tmp[b] = o.fluxPos(b, k-s)
		ct.Append(row, fs.index(tmp), -inv)
	})
	return it.CSR(), at.CSR(), ct.CSR()
}

// laplacian builds the velocity Laplacian. Tangential wall conditions use a
// mirrored ghost value.
func (o *Operators) laplacian() *sparse.CSR {
	t := sparse.NewTriplet(o.NV, o.NV)
	tmp := make([]int, o.Dim)
	for a := 0; a < o.Dim; a++ {
		cs := o.comp[a]
		off := o.offsets[a]
		cs.each(func(idx []int, row int) {
			r := off + row
			copy(tmp, idx)
			for g := 0; g < o.Dim; g++ {
				h2 := 1 / (o.H[g] * o.H[g])
				t.Append(r, r, -2*h2)
				if g == a {
					pos := o.facePos(a, idx[a])
					for _, j := range [2]int{pos - 1, pos + 1} {
						if f := o.faceAt(a, j); f >= 0 {
							tmp[a] = f
							t.Append(r, off+cs.index(tmp), h2)
						}
					}
					tmp[a] = idx[a]
					continue
				}
				for side, k := range [2]int{idx[g] - 1, idx[g] + 1} {
					if c := o.cellAt(g, k); c >= 0 {
						tmp[g] = c
						t.Append(r, off+cs.index(tmp), h2)
						continue
					}
					t.Append(r, r, -h2)
					x := o.unknownPoint(a, idx)
					if side == 1 {
						x[g] = o.Axes[g].Length
					} else {
						x[g] = 0
					}
					o.addWallTap(tapLap, a, g, r, 2*h2, side == 0, x)
				}
				tmp[g] = idx[g]
			}
		})
	}
	return t.CSR()
}

func (o *Operators) divergence() *sparse.CSR {
	t := sparse.NewTriplet(o.Np, o.NV)
	tmp := make([]int, o.Dim)
	o.cells.each(func(idx []int, row int) {
		for a := 0; a < o.Dim; a++ {
			copy(tmp, idx)
			inv := 1 / o.H[a]
			if f := o.faceAt(a, idx[a]+1); f >= 0 {
				tmp[a] = f
				t.Append(row, o.offsets[a]+o.comp[a].index(tmp), inv)
			}
			if f := o.faceAt(a, idx[a]); f >= 0 {
				tmp[a] = f
				t.Append(row, o.offsets[a]+o.comp[a].index(tmp), -inv)
			}
		}
	})
	return t.CSR()
}

// Filter returns the diffusive filter I + alpha·Lap.
func (o *Operators) Filter(alpha float64) *sparse.CSR {
	return sparse.Add(1, sparse.Identity(o.NV), alpha, o.Lap)
}

func (o *Operators) unknownPoint(a int, idx []int) []float64 {
	x := make([]float64, o.Dim)
	for g := range x {
		if g == a {
			x[g] = float64(o.facePos(g, idx[g])) * o.H[g]
		} else {
			x[g] = (float64(idx[g]) + 0.5) * o.H[g]
		}
	}
	return x
}

func (o *Operators) fluxPoint(a, b int, idx []int) []float64 {
	x := o.unknownPoint(a, idx)
	x[b] = float64(idx[b]) * o.H[b]
	return x
}
