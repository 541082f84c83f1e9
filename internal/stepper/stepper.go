package stepper

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/convection"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
	"github.com/san-kum/nsflow/internal/momentum"
	"github.com/san-kum/nsflow/internal/pressure"
)

// maxDense bounds the unknown count of dense implicit and IMEX systems.
const maxDense = 6000

// Setup is everything a stepper needs besides the method and the state.
// Only read-only parts are shared; each stepper builds its own strategy,
// assembler and pressure scratch from it.
type Setup struct {
	Ops        *grid.Operators
	Convection convection.Config
	Force      momentum.BodyForce
	Pressure   *pressure.Factor
}

// State is the solution at the end of the last completed step. Slices are
// owned by the stepper and must not be modified.
type State struct {
	V, P  []float64
	T     float64
	N     int
	Dt    float64
	Vprev []float64
	Pprev []float64
	Tprev float64
}

// HasPrev reports whether a previous step is recorded.
func (s State) HasPrev() bool { return s.N > 0 }

// Clone returns a copy that does not share memory with the stepper.
func (s State) Clone() State {
	c := s
	c.V = append([]float64(nil), s.V...)
	c.P = append([]float64(nil), s.P...)
	c.Vprev = append([]float64(nil), s.Vprev...)
	c.Pprev = append([]float64(nil), s.Pprev...)
	return c
}

// Report describes the nonlinear solve of one step. Explicit steps report
// zero iterations and Converged.
type Report struct {
	Iterations   int
	LinearSolves int
	Residual     float64
	Converged    bool
}

type Stepper struct {
	setup  Setup
	method methods.Method
	asm    *momentum.Assembler
	solver *pressure.Solver
	proj   *pressure.Projector
	state  State

	F   []float64
	phi []float64

	explicit *explicitCache
	implicit *implicitCache
	abcn     *abcnCache
	oneLeg   *oneLegCache
}

// New builds a stepper at (V0, p0, t0). A nil p0 is zero pressure.
func New(setup Setup, method methods.Method, V0, p0 []float64, t0 float64) (*Stepper, error) {
	ops := setup.Ops
	if len(V0) != ops.NV {
		return nil, fmt.Errorf("%w: velocity has %d values, want %d", ErrDimension, len(V0), ops.NV)
	}
	if p0 != nil && len(p0) != ops.Np {
		return nil, fmt.Errorf("%w: pressure has %d values, want %d", ErrDimension, len(p0), ops.Np)
	}
	conv, err := convection.New(setup.Convection, ops)
	if err != nil {
		return nil, err
	}
	s := &Stepper{
		setup:  setup,
		method: method,
		asm:    momentum.New(ops, conv, setup.Force),
		solver: setup.Pressure.NewSolver(),
		F:      make([]float64, ops.NV),
		phi:    make([]float64, ops.Np),
		state: State{
			V:     append([]float64(nil), V0...),
			P:     make([]float64, ops.Np),
			T:     t0,
			Vprev: make([]float64, ops.NV),
			Pprev: make([]float64, ops.Np),
			Tprev: t0,
		},
	}
	if p0 != nil {
		copy(s.state.P, p0)
	}
	s.proj = pressure.NewProjector(ops, s.solver)

	switch m := method.(type) {
	case *methods.ExplicitRK:
		s.explicit = newExplicitCache(m, ops.NV)
	case *methods.ImplicitRK:
		s.implicit, err = newImplicitCache(m, ops)
	case *methods.ABCN:
		s.abcn, err = newABCNCache(ops)
	case *methods.OneLeg:
		s.oneLeg = newOneLegCache(ops)
	default:
		err = fmt.Errorf("%w: %T", methods.ErrUnknownMethod, method)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Transfer returns a stepper for m that continues exactly where old
// stopped. Auxiliary history of the old method is not carried over.
func Transfer(old *Stepper, m methods.Method) (*Stepper, error) {
	st := old.state
	s, err := New(old.setup, m, st.V, st.P, st.T)
	if err != nil {
		return nil, err
	}
	s.state.N = st.N
	s.state.Dt = st.Dt
	s.state.Tprev = st.Tprev
	copy(s.state.Vprev, st.Vprev)
	copy(s.state.Pprev, st.Pprev)
	return s, nil
}

func (s *Stepper) State() State                   { return s.state }
func (s *Stepper) Method() methods.Method         { return s.method }
func (s *Stepper) Assembler() *momentum.Assembler { return s.asm }
func (s *Stepper) Operators() *grid.Operators     { return s.setup.Ops }

// PressureSolves is the number of pressure Poisson solves so far.
func (s *Stepper) PressureSolves() int { return s.solver.Solves }

// Step advances the solution by dt. A Newton shortfall is reported in the
// Report; non-finite results are returned as a *StepError.
func (s *Stepper) Step(dt float64) (Report, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Report{}, s.fail(fmt.Errorf("%w: %g", ErrBadTimestep, dt))
	}

	var (
		rep Report
		err error
	)
	switch m := s.method.(type) {
	case *methods.ExplicitRK:
		rep, err = s.stepExplicit(m, dt)
	case *methods.ImplicitRK:
		rep, err = s.stepImplicit(m, dt)
	case *methods.ABCN:
		rep, err = s.stepABCN(m, dt)
	case *methods.OneLeg:
		rep, err = s.stepOneLeg(m, dt)
	}
	if err != nil {
		return rep, s.fail(err)
	}

	st := &s.state
	st.Tprev = st.T
	st.T += dt
	st.Dt = dt
	st.N++
	if !finite(st.V) || !finite(st.P) {
		return rep, s.fail(ErrNonFinite)
	}
	return rep, nil
}

func (s *Stepper) fail(err error) error {
	return &StepError{Step: s.state.N, Time: s.state.T, Err: err}
}

// begin records the current solution as the previous step.
func (s *Stepper) begin() {
	copy(s.state.Vprev, s.state.V)
	copy(s.state.Pprev, s.state.P)
}

// Project removes the divergence of the current velocity.
func (s *Stepper) Project() error {
	return s.proj.Project(s.state.V, s.phi, s.asm.Vectors(s.state.T).YM, 1)
}

// SolvePressure replaces the pressure with the one consistent with the
// current velocity: L·p = M·(F₀ − yG) where F₀ is the momentum without
// pressure.
func (s *Stepper) SolvePressure() error {
	ops := s.setup.Ops
	t := s.state.T
	s.asm.Momentum(s.F, s.state.V, s.state.V, nil, t, true, false)
	floats.Sub(s.F, s.asm.Vectors(t).YG)
	rhs := make([]float64, ops.Np)
	ops.M.MulVecTo(rhs, s.F)
	return s.solver.Solve(s.state.P, rhs)
}

// Divergence returns max|M·V + yM| of the current velocity.
func (s *Stepper) Divergence() float64 {
	return s.proj.Divergence(s.state.V, s.asm.Vectors(s.state.T).YM)
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
