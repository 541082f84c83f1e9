package convection

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sparse"
)

// richardson is the error ratio between the width-3 and width-1 stencils.
const richardson = 9.0

// pair holds the flux of component a through direction b and the two
// Jacobian products it contributes.
type pair struct {
	I, A, C *sparse.CSR
	u, ubar []float64
	flux    []float64
	jc, jp  *sparse.Product
}

// stencil evaluates the convection of one stencil width.
type stencil struct {
	ops    *grid.Operators
	wide   bool
	pairs  [][]*pair
	jc, jp *sparse.BlockSum
}

func newStencil(ops *grid.Operators, wide bool) *stencil {
	I, A, C := ops.I, ops.A, ops.C
	if wide {
		I, A, C = ops.I3, ops.A3, ops.C3
	}
	s := &stencil{
		ops:   ops,
		wide:  wide,
		pairs: make([][]*pair, ops.Dim),
		jc:    sparse.NewBlockSum(ops.NV, ops.NV),
		jp:    sparse.NewBlockSum(ops.NV, ops.NV),
	}
	for a := 0; a < ops.Dim; a++ {
		lo, _ := ops.Range(a)
		s.pairs[a] = make([]*pair, ops.Dim)
		for b := 0; b < ops.Dim; b++ {
			n, _ := I[a][b].Dims()
			p := &pair{
				I:    I[a][b],
				A:    A[a][b],
				C:    C[a][b],
				u:    make([]float64, n),
				ubar: make([]float64, n),
				flux: make([]float64, n),
				jc:   sparse.NewProduct(C[a][b], I[a][b]),
				jp:   sparse.NewProduct(C[a][b], A[a][b]),
			}
			s.pairs[a][b] = p
			s.jc.Add(p.jc.Out(), lo, 0, 1)
			s.jp.Add(p.jp.Out(), lo, 0, 1)
		}
	}
	s.jc.Build()
	s.jp.Build()
	return s
}

func (s *stencil) vectors(bc *grid.Vectors) (yI, yA [][][]float64) {
	if bc == nil {
		return nil, nil
	}
	if s.wide {
		return bc.YI3, bc.YA3
	}
	return bc.YI, bc.YA
}

// eval overwrites c with the convection of V by phi. A nil bcV or bcPhi
// makes that field homogeneous.
func (s *stencil) eval(c, V, phi []float64, bcV, bcPhi *grid.Vectors, jac, parallel bool) {
	yI, _ := s.vectors(bcV)
	_, yA := s.vectors(bcPhi)

	component := func(a int) {
		lo, hi := s.ops.Range(a)
		ca := c[lo:hi]
		clear(ca)
		for b, p := range s.pairs[a] {
			p.I.MulVecTo(p.u, V)
			if yI != nil {
				floats.Add(p.u, yI[a][b])
			}
			p.A.MulVecTo(p.ubar, phi)
			if yA != nil {
				floats.Add(p.ubar, yA[a][b])
			}
			floats.MulTo(p.flux, p.u, p.ubar)
			p.C.MulVecAddTo(ca, 1, p.flux)
			if jac {
				p.jc.Eval(p.ubar)
				p.jp.Eval(p.u)
			}
		}
	}

	if parallel {
		var g errgroup.Group
		for a := 0; a < s.ops.Dim; a++ {
			a := a
			g.Go(func() error {
				component(a)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for a := 0; a < s.ops.Dim; a++ {
			component(a)
		}
	}

	if jac {
		s.jc.Eval()
		s.jp.Eval()
	}
}

// base is the unregularized convection operator, optionally with the
// fourth-order Richardson combination of two stencil widths.
type base struct {
	w1, w3   *stencil
	c3       []float64
	jc, jp   *sparse.CSR
	sc, sp   *sparse.BlockSum
	parallel bool
}

func newBase(ops *grid.Operators, order4, parallel bool) *base {
	b := &base{w1: newStencil(ops, false), parallel: parallel}
	if !order4 {
		b.jc, b.jp = b.w1.jc.Out(), b.w1.jp.Out()
		return b
	}
	b.w3 = newStencil(ops, true)
	b.c3 = make([]float64, ops.NV)
	w := 1 / (richardson - 1)
	b.sc = sparse.NewBlockSum(ops.NV, ops.NV).
		Add(b.w1.jc.Out(), 0, 0, richardson*w).
		Add(b.w3.jc.Out(), 0, 0, -w)
	b.sp = sparse.NewBlockSum(ops.NV, ops.NV).
		Add(b.w1.jp.Out(), 0, 0, richardson*w).
		Add(b.w3.jp.Out(), 0, 0, -w)
	b.jc, b.jp = b.sc.Build(), b.sp.Build()
	return b
}

func (b *base) eval(c, V, phi []float64, bcV, bcPhi *grid.Vectors, jac bool) {
	b.w1.eval(c, V, phi, bcV, bcPhi, jac, b.parallel)
	if b.w3 == nil {
		return
	}
	b.w3.eval(b.c3, V, phi, bcV, bcPhi, jac, b.parallel)
	w := 1 / (richardson - 1)
	floats.Scale(richardson*w, c)
	floats.AddScaled(c, -w, b.c3)
	if jac {
		b.sc.Eval()
		b.sp.Eval()
	}
}
