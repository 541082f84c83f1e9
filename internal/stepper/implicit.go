package stepper

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
)

// implicitCache holds the coupled stage system. The unknown vector is
// [V₁ … Vₛ, p₁ … pₛ]; the first pressure of every stage is pinned.
type implicitCache struct {
	s, nv, np int
	a         [][]float64
	c         []float64
	newton    methods.Newton

	vn  []float64
	x   []float64
	r   []float64
	dx  []float64
	f   [][]float64

	jac      *mat.Dense
	lu       mat.LU
	rhs, sol *mat.VecDense
	factored bool
	factorDt float64
}

func newImplicitCache(m *methods.ImplicitRK, ops *grid.Operators) (*implicitCache, error) {
	s := m.Stages()
	n := s * (ops.NV + ops.Np)
	if n > maxDense {
		return nil, fmt.Errorf("%w: %s needs %d unknowns, limit %d", ErrTooLarge, m.Name(), n, maxDense)
	}
	ic := &implicitCache{
		s:      s,
		nv:     ops.NV,
		np:     ops.Np,
		a:      make([][]float64, s),
		c:      append([]float64(nil), m.C...),
		newton: m.Newton,
		vn:     make([]float64, ops.NV),
		x:      make([]float64, n),
		r:      make([]float64, n),
		dx:     make([]float64, n),
		f:      make([][]float64, s),
		jac:    mat.NewDense(n, n, nil),
	}
	for i := 0; i < s; i++ {
		ic.a[i] = mat.Row(nil, i, m.A)
		ic.f[i] = make([]float64, ops.NV)
	}
	ic.rhs = mat.NewVecDense(n, nil)
	ic.sol = mat.NewVecDense(n, ic.dx)
	return ic, nil
}

func (ic *implicitCache) vel(x []float64, i int) []float64 {
	return x[i*ic.nv : (i+1)*ic.nv]
}

func (ic *implicitCache) pres(x []float64, i int) []float64 {
	o := ic.s*ic.nv + i*ic.np
	return x[o : o+ic.np]
}

// stepImplicit solves the stage system by Newton–Raphson from the current
// solution. The Jacobian is I/Δt only (NoJacobian), taken once at the
// start of the step (Approximate) or rebuilt every iteration (Full).
func (s *Stepper) stepImplicit(m *methods.ImplicitRK, dt float64) (Report, error) {
	ic := s.implicit
	st := &s.state
	s.begin()
	copy(ic.vn, st.V)
	for i := 0; i < ic.s; i++ {
		copy(ic.vel(ic.x, i), st.V)
		copy(ic.pres(ic.x, i), st.P)
	}

	var (
		rep Report
		tol float64
	)
	for it := 0; ; it++ {
		needJac := ic.newton.Type == methods.Full ||
			(ic.newton.Type == methods.Approximate && it == 0)
		if needJac {
			ic.jac.Zero()
		}
		s.stageResidual(dt, needJac)

		rn := floats.Norm(ic.r, math.Inf(1))
		if math.IsNaN(rn) || math.IsInf(rn, 0) {
			return rep, ErrNonFinite
		}
		rep.Residual = rn
		if it == 0 {
			tol = math.Max(ic.newton.AbsTol, ic.newton.RelTol*rn)
		}
		if rn <= tol {
			rep.Converged = true
			break
		}
		if it == ic.newton.MaxIter {
			break
		}

		switch {
		case needJac:
			ic.addConstantBlocks(s, dt)
			ic.factored = false
		case ic.newton.Type == methods.NoJacobian && (!ic.factored || ic.factorDt != dt):
			ic.jac.Zero()
			ic.addConstantBlocks(s, dt)
			ic.factored = false
		}
		if !ic.factored {
			ic.lu.Factorize(ic.jac)
			ic.factored = true
			ic.factorDt = dt
		}

		for k, v := range ic.r {
			ic.rhs.SetVec(k, -v)
		}
		if err := ic.lu.SolveVecTo(ic.sol, false, ic.rhs); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return rep, fmt.Errorf("stepper: newton solve: %w", err)
			}
		}
		floats.Add(ic.x, ic.dx)
		rep.Iterations++
		rep.LinearSolves++
	}

	// V = Vₙ + Δt·Σ bᵢ·F(Vᵢ, pᵢ), then a final projection.
	copy(st.V, ic.vn)
	for i, b := range m.B {
		floats.AddScaled(st.V, dt*b, ic.f[i])
	}
	t1 := st.T + dt
	if err := s.proj.Project(st.V, s.phi, s.asm.Vectors(t1).YM, dt); err != nil {
		return rep, err
	}
	floats.AddTo(st.P, ic.pres(ic.x, ic.s-1), s.phi)
	return rep, nil
}

// stageResidual evaluates F at every stage and writes
//
//	r_Vᵢ = (Vₙ − Vᵢ)/Δt + Σⱼ aᵢⱼ·F(Vⱼ, pⱼ)
//	r_pᵢ = −(M·Vᵢ + yM(tᵢ))
//
// When jac is set, aᵢⱼ·∇F(Vⱼ) is added to the Jacobian.
func (s *Stepper) stageResidual(dt float64, jac bool) {
	ic := s.implicit
	ops := s.setup.Ops
	tn := s.state.T
	for j := 0; j < ic.s; j++ {
		vj := ic.vel(ic.x, j)
		tj := tn + ic.c[j]*dt
		jf := s.asm.Momentum(ic.f[j], vj, vj, ic.pres(ic.x, j), tj, false, jac)
		if jac {
			for i := 0; i < ic.s; i++ {
				if a := ic.a[i][j]; a != 0 {
					jf.AddToDense(ic.jac, i*ic.nv, j*ic.nv, a)
				}
			}
		}
		rp := ic.pres(ic.r, j)
		ops.M.MulVecTo(rp, vj)
		floats.Add(rp, s.asm.Vectors(tj).YM)
		floats.Scale(-1, rp)
		rp[0] = 0
	}
	for i := 0; i < ic.s; i++ {
		ri := ic.vel(ic.r, i)
		floats.SubTo(ri, ic.vn, ic.vel(ic.x, i))
		floats.Scale(1/dt, ri)
		for j := 0; j < ic.s; j++ {
			if a := ic.a[i][j]; a != 0 {
				floats.AddScaled(ri, a, ic.f[j])
			}
		}
	}
}

// addConstantBlocks adds the parts of the stage Jacobian that do not depend
// on the iterate and pins the first pressure of every stage.
func (ic *implicitCache) addConstantBlocks(s *Stepper, dt float64) {
	ops := s.setup.Ops
	pOff := ic.s * ic.nv
	for i := 0; i < ic.s; i++ {
		for k := 0; k < ic.nv; k++ {
			r := i*ic.nv + k
			ic.jac.Set(r, r, ic.jac.At(r, r)-1/dt)
		}
		for j := 0; j < ic.s; j++ {
			if a := ic.a[i][j]; a != 0 {
				ops.G.AddToDense(ic.jac, i*ic.nv, pOff+j*ic.np, -a)
			}
		}
		ops.M.AddToDense(ic.jac, pOff+i*ic.np, i*ic.nv, -1)

		row := pOff + i*ic.np
		for k := 0; k < ic.jac.RawMatrix().Cols; k++ {
			ic.jac.Set(row, k, 0)
		}
		ic.jac.Set(row, row, 1)
	}
}
