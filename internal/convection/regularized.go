package convection

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sparse"
)

// c2 filters both fields, convects, and filters the result.
type c2 struct {
	name       string
	f          *filter
	b          *base
	vbar, pbar []float64
	cbar       []float64
	inner      *sparse.BlockSum
	left       *sparse.Product
	right      *sparse.Product
}

func newC2(cfg Config, ops *grid.Operators, name string) *c2 {
	s := &c2{
		name: name,
		f:    newFilter(ops, cfg.FilterAlpha),
		b:    newBase(ops, cfg.Order4, cfg.Parallel),
		vbar: make([]float64, ops.NV),
		pbar: make([]float64, ops.NV),
		cbar: make([]float64, ops.NV),
	}
	s.inner = sparse.NewBlockSum(ops.NV, ops.NV).
		Add(s.b.jc, 0, 0, 1).
		Add(s.b.jp, 0, 0, cfg.NewtonFactor)
	s.left = sparse.NewProduct(s.f.F, s.inner.Build())
	s.right = sparse.NewProduct(s.left.Out(), s.f.F)
	return s
}

func (s *c2) Evaluate(c, V, phi []float64, bc *grid.Vectors, jac bool) *sparse.CSR {
	s.f.apply(s.vbar, V, bc)
	s.f.apply(s.pbar, phi, bc)
	s.b.eval(s.cbar, s.vbar, s.pbar, bc, bc, jac)
	s.f.F.MulVecTo(c, s.cbar)
	s.f.recordDivergence(s.vbar, bc)
	if !jac {
		return nil
	}
	s.inner.Eval()
	s.left.Eval(nil)
	s.right.Eval(nil)
	return s.right.Out()
}

func (s *c2) Jacobian() *sparse.CSR       { return s.right.Out() }
func (s *c2) FilteredDivergence() float64 { return s.f.max }
func (s *c2) Name() string                { return s.name }

// leray convects the unfiltered field by the filtered one.
type leray struct {
	name string
	f    *filter
	b    *base
	pbar []float64
	jpf  *sparse.Product
	jac  *sparse.BlockSum
}

func newLeray(cfg Config, ops *grid.Operators, name string) *leray {
	s := &leray{
		name: name,
		f:    newFilter(ops, cfg.FilterAlpha),
		b:    newBase(ops, cfg.Order4, cfg.Parallel),
		pbar: make([]float64, ops.NV),
	}
	s.jpf = sparse.NewProduct(s.b.jp, s.f.F)
	s.jac = sparse.NewBlockSum(ops.NV, ops.NV).
		Add(s.b.jc, 0, 0, 1).
		Add(s.jpf.Out(), 0, 0, cfg.NewtonFactor)
	s.jac.Build()
	return s
}

func (s *leray) Evaluate(c, V, phi []float64, bc *grid.Vectors, jac bool) *sparse.CSR {
	s.f.apply(s.pbar, phi, bc)
	s.b.eval(c, V, s.pbar, bc, bc, jac)
	s.f.recordDivergence(s.pbar, bc)
	if !jac {
		return nil
	}
	s.jpf.Eval(nil)
	s.jac.Eval()
	return s.jac.Out()
}

func (s *leray) Jacobian() *sparse.CSR       { return s.jac.Out() }
func (s *leray) FilteredDivergence() float64 { return s.f.max }
func (s *leray) Name() string                { return s.name }

// c4 splits both fields into filtered and residual parts and filters the
// sum of the three cross terms. The residual parts carry no boundary data.
type c4 struct {
	name       string
	f          *filter
	b1, b2, b3 *base
	vbar, pbar []float64
	dv, dp     []float64
	c1, c2, c3 []float64

	// F·[(J1c + N·J1p + N·J2p + J3c)·F + (J2c + N·J3p)·(I − F)]
	s1, s2 *sparse.BlockSum
	p1, p2 *sparse.Product
	s3     *sparse.BlockSum
	out    *sparse.Product
}

func newC4(cfg Config, ops *grid.Operators, name string) *c4 {
	nv := ops.NV
	n := cfg.NewtonFactor
	s := &c4{
		name: name,
		f:    newFilter(ops, cfg.FilterAlpha),
		b1:   newBase(ops, cfg.Order4, cfg.Parallel),
		b2:   newBase(ops, cfg.Order4, cfg.Parallel),
		b3:   newBase(ops, cfg.Order4, cfg.Parallel),
		vbar: make([]float64, nv),
		pbar: make([]float64, nv),
		dv:   make([]float64, nv),
		dp:   make([]float64, nv),
		c1:   make([]float64, nv),
		c2:   make([]float64, nv),
		c3:   make([]float64, nv),
	}
	s.s1 = sparse.NewBlockSum(nv, nv).
		Add(s.b1.jc, 0, 0, 1).
		Add(s.b1.jp, 0, 0, n).
		Add(s.b2.jp, 0, 0, n).
		Add(s.b3.jc, 0, 0, 1)
	s.s2 = sparse.NewBlockSum(nv, nv).
		Add(s.b2.jc, 0, 0, 1).
		Add(s.b3.jp, 0, 0, n)
	residual := sparse.Add(1, sparse.Identity(nv), -1, s.f.F)
	s.p1 = sparse.NewProduct(s.s1.Build(), s.f.F)
	s.p2 = sparse.NewProduct(s.s2.Build(), residual)
	s.s3 = sparse.NewBlockSum(nv, nv).
		Add(s.p1.Out(), 0, 0, 1).
		Add(s.p2.Out(), 0, 0, 1)
	s.out = sparse.NewProduct(s.f.F, s.s3.Build())
	return s
}

func (s *c4) Evaluate(c, V, phi []float64, bc *grid.Vectors, jac bool) *sparse.CSR {
	s.f.apply(s.vbar, V, bc)
	s.f.apply(s.pbar, phi, bc)
	floats.SubTo(s.dv, V, s.vbar)
	floats.SubTo(s.dp, phi, s.pbar)

	s.b1.eval(s.c1, s.vbar, s.pbar, bc, bc, jac)
	s.b2.eval(s.c2, s.dv, s.pbar, nil, bc, jac)
	s.b3.eval(s.c3, s.vbar, s.dp, bc, nil, jac)
	floats.Add(s.c1, s.c2)
	floats.Add(s.c1, s.c3)
	s.f.F.MulVecTo(c, s.c1)
	s.f.recordDivergence(s.vbar, bc)
	if !jac {
		return nil
	}
	s.s1.Eval()
	s.s2.Eval()
	s.p1.Eval(nil)
	s.p2.Eval(nil)
	s.s3.Eval()
	s.out.Eval(nil)
	return s.out.Out()
}

func (s *c4) Jacobian() *sparse.CSR       { return s.out.Out() }
func (s *c4) FilteredDivergence() float64 { return s.f.max }
func (s *c4) Name() string                { return s.name }
