package stepper

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
)

type abcnCache struct {
	cn, cprev []float64
	hasPrev   bool
	d, f0, f1 []float64
	rhs, gp   []float64

	sys      *mat.Dense
	lu       mat.LU
	b, x     *mat.VecDense
	factored bool
	factorDt float64
}

func newABCNCache(ops *grid.Operators) (*abcnCache, error) {
	nv := ops.NV
	if nv > maxDense {
		return nil, fmt.Errorf("%w: ABCN needs %d unknowns, limit %d", ErrTooLarge, nv, maxDense)
	}
	ac := &abcnCache{
		cn:    make([]float64, nv),
		cprev: make([]float64, nv),
		d:     make([]float64, nv),
		f0:    make([]float64, nv),
		f1:    make([]float64, nv),
		rhs:   make([]float64, nv),
		gp:    make([]float64, nv),
		sys:   mat.NewDense(nv, nv, nil),
	}
	ac.b = mat.NewVecDense(nv, ac.rhs)
	ac.x = mat.NewVecDense(nv, nil)
	return ac, nil
}

// factor builds and factors I/Δt − θ·Diff once per Δt.
func (ac *abcnCache) factor(ops *grid.Operators, theta, dt float64) {
	if ac.factored && ac.factorDt == dt {
		return
	}
	ac.sys.Zero()
	ops.Diff.AddToDense(ac.sys, 0, 0, -theta)
	for i := 0; i < ops.NV; i++ {
		ac.sys.Set(i, i, ac.sys.At(i, i)+1/dt)
	}
	ac.lu.Factorize(ac.sys)
	ac.factored = true
	ac.factorDt = dt
}

// extrapolationWeights returns the Adams–Bashforth weights of the current
// and previous convection for a step dt following a step prev. The weights
// extrapolate to tₙ − α₂·dt whatever the step ratio.
func extrapolationWeights(m *methods.ABCN, dt, prev float64) (a1, a2 float64) {
	if !(prev > 0) {
		return m.Alpha1, m.Alpha2
	}
	a2 = m.Alpha2 * dt / prev
	return 1 - a2, a2
}

// stepABCN treats convection with Adams–Bashforth and diffusion with the
// θ-scheme, then applies an incremental pressure correction.
func (s *Stepper) stepABCN(m *methods.ABCN, dt float64) (Report, error) {
	ac := s.abcn
	st := &s.state
	ops := s.setup.Ops
	tn, t1 := st.T, st.T+dt
	th := m.Theta

	s.asm.Convection(ac.cn, st.V, st.V, tn)
	if !ac.hasPrev {
		if !st.HasPrev() {
			return Report{}, ErrNoHistory
		}
		s.asm.Convection(ac.cprev, st.Vprev, st.Vprev, st.Tprev)
	}

	rhs := ac.rhs
	copy(rhs, st.V)
	floats.Scale(1/dt, rhs)
	a1, a2 := extrapolationWeights(m, dt, st.Dt)
	floats.AddScaled(rhs, -a1, ac.cn)
	floats.AddScaled(rhs, -a2, ac.cprev)
	s.asm.Diffusion(ac.d, st.V, tn)
	floats.AddScaled(rhs, 1-th, ac.d)
	floats.AddScaled(rhs, th, s.asm.Vectors(t1).YDiff)
	s.asm.BodyForce(ac.f0, st.V, tn)
	s.asm.BodyForce(ac.f1, st.V, t1)
	floats.AddScaled(rhs, 1-th, ac.f0)
	floats.AddScaled(rhs, th, ac.f1)
	s.asm.PressureGradient(ac.gp, st.P, tn)
	floats.Sub(rhs, ac.gp)

	ac.factor(ops, th, dt)
	if err := ac.lu.SolveVecTo(ac.x, false, ac.b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return Report{}, fmt.Errorf("stepper: diffusion solve: %w", err)
		}
	}

	s.begin()
	copy(st.V, ac.x.RawVector().Data)
	if err := s.proj.Project(st.V, s.phi, s.asm.Vectors(t1).YM, dt); err != nil {
		return Report{}, err
	}
	floats.Add(st.P, s.phi)

	ac.cn, ac.cprev = ac.cprev, ac.cn
	ac.hasPrev = true
	return Report{Converged: true}, nil
}

type oneLegCache struct {
	vext, pext []float64
	f, vnew    []float64
}

func newOneLegCache(ops *grid.Operators) *oneLegCache {
	return &oneLegCache{
		vext: make([]float64, ops.NV),
		pext: make([]float64, ops.Np),
		f:    make([]float64, ops.NV),
		vnew: make([]float64, ops.NV),
	}
}

// stepOneLeg evaluates the momentum at the extrapolated solution and
// projects with the effective step Δt/(β+½).
func (s *Stepper) stepOneLeg(m *methods.OneLeg, dt float64) (Report, error) {
	st := &s.state
	if !st.HasPrev() {
		return Report{}, ErrNoHistory
	}
	oc := s.oneLeg
	beta := m.Beta
	tn, t1 := st.T, st.T+dt
	text := tn + beta*(tn-st.Tprev)

	for i := range oc.vext {
		oc.vext[i] = (1+beta)*st.V[i] - beta*st.Vprev[i]
	}
	for i := range oc.pext {
		oc.pext[i] = (1+beta)*st.P[i] - beta*st.Pprev[i]
	}
	s.asm.Momentum(oc.f, oc.vext, oc.vext, oc.pext, text, false, false)

	// Vₙ₊₁ = (2β·Vₙ − (β−½)·Vₙ₋₁ + Δt·F) / (β+½)
	w := beta + 0.5
	for i := range oc.vnew {
		oc.vnew[i] = (2*beta*st.V[i] - (beta-0.5)*st.Vprev[i] + dt*oc.f[i]) / w
	}

	s.begin()
	copy(st.V, oc.vnew)
	if err := s.proj.Project(st.V, s.phi, s.asm.Vectors(t1).YM, dt/w); err != nil {
		return Report{}, err
	}
	floats.AddTo(st.P, oc.pext, s.phi)
	return Report{Converged: true}, nil
}
