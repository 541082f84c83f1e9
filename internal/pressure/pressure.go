package pressure

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sparse"
)

var (
	// ErrFactorization indicates the pinned pressure Laplacian is not positive definite.
	ErrFactorization = errors.New("pressure: Laplacian factorization failed")

	// ErrNotConverged indicates the iterative solver hit its iteration cap.
	ErrNotConverged = errors.New("pressure: iterative solve did not converge")

	// ErrUnknownKind indicates an unsupported solver name.
	ErrUnknownKind = errors.New("pressure: unknown solver")
)

type Kind int

const (
	Auto Kind = iota
	Cholesky
	CG
)

// autoLimit is the largest pressure system factored densely by Auto.
const autoLimit = 4096

func (k Kind) String() string {
	switch k {
	case Cholesky:
		return "cholesky"
	case CG:
		return "cg"
	default:
		return "auto"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "cholesky":
		return Cholesky, nil
	case "cg":
		return CG, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Factor holds the pressure Laplacian L = M·G with the first pressure
// unknown pinned to zero. It is read-only after construction and may be
// shared by several solvers.
type Factor struct {
	ops     *grid.Operators
	kind    Kind
	L       *sparse.CSR
	chol    *mat.Cholesky
	diag    []float64
	Tol     float64
	MaxIter int
}

func NewFactor(ops *grid.Operators, kind Kind) (*Factor, error) {
	f := &Factor{
		ops:     ops,
		kind:    kind,
		L:       sparse.Mul(ops.M, ops.G),
		Tol:     1e-12,
		MaxIter: 10 * ops.Np,
	}
	if f.kind == Auto {
		f.kind = Cholesky
		if ops.Np > autoLimit {
			f.kind = CG
		}
	}

	switch f.kind {
	case Cholesky:
		n := ops.Np - 1
		sym := mat.NewSymDense(n, nil)
		f.L.DoNonZero(func(i, j int, v float64) {
			if i > 0 && j >= i {
				sym.SetSym(i-1, j-1, -v)
			}
		})
		var ch mat.Cholesky
		if ok := ch.Factorize(sym); !ok {
			return nil, ErrFactorization
		}
		f.chol = &ch
	case CG:
		f.diag = f.L.Diagonal()
		for i, d := range f.diag {
			if d == 0 {
				return nil, fmt.Errorf("%w: zero diagonal at %d", ErrFactorization, i)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	return f, nil
}

func (f *Factor) Kind() Kind { return f.kind }

// Solver solves L·p = rhs with scratch owned by one caller.
type Solver struct {
	f          *Factor
	b, x       *mat.VecDense
	r, z, d, q []float64
	Solves     int
	Iterations int
}

func (f *Factor) NewSolver() *Solver {
	s := &Solver{f: f}
	np := f.ops.Np
	if f.chol != nil {
		s.b = mat.NewVecDense(np-1, nil)
		s.x = mat.NewVecDense(np-1, nil)
	} else {
		s.r = make([]float64, np)
		s.z = make([]float64, np)
		s.d = make([]float64, np)
		s.q = make([]float64, np)
	}
	return s
}

// Solve overwrites p with the solution of L·p = rhs having p[0] = 0.
func (s *Solver) Solve(p, rhs []float64) error {
	s.Solves++
	if s.f.chol != nil {
		for i := 1; i < len(rhs); i++ {
			s.b.SetVec(i-1, -rhs[i])
		}
		if err := s.f.chol.SolveVecTo(s.x, s.b); err != nil {
			return fmt.Errorf("pressure: cholesky solve: %w", err)
		}
		p[0] = 0
		for i := 1; i < len(p); i++ {
			p[i] = s.x.AtVec(i - 1)
		}
		return nil
	}
	return s.cg(p, rhs)
}

// cg runs Jacobi-preconditioned conjugate gradients on −L·p = −rhs with
// the mean of the right-hand side removed.
func (s *Solver) cg(p, rhs []float64) error {
	L := s.f.L
	n := len(rhs)
	mean := floats.Sum(rhs) / float64(n)
	for i := range s.r {
		s.r[i] = -(rhs[i] - mean)
	}
	clear(p)
	bnorm := floats.Norm(s.r, 2)
	if bnorm == 0 {
		return nil
	}
	for i := range s.z {
		s.z[i] = s.r[i] / -s.f.diag[i]
	}
	copy(s.d, s.z)
	rz := floats.Dot(s.r, s.z)
	for it := 0; it < s.f.MaxIter; it++ {
		s.Iterations++
		L.MulVecTo(s.q, s.d)
		floats.Scale(-1, s.q)
		alpha := rz / floats.Dot(s.d, s.q)
		floats.AddScaled(p, alpha, s.d)
		floats.AddScaled(s.r, -alpha, s.q)
		if floats.Norm(s.r, 2) <= s.f.Tol*bnorm {
			shift(p)
			return nil
		}
		for i := range s.z {
			s.z[i] = s.r[i] / -s.f.diag[i]
		}
		rzNew := floats.Dot(s.r, s.z)
		beta := rzNew / rz
		rz = rzNew
		for i := range s.d {
			s.d[i] = s.z[i] + beta*s.d[i]
		}
	}
	shift(p)
	return fmt.Errorf("%w after %d iterations (residual %.3e)", ErrNotConverged, s.f.MaxIter, floats.Norm(s.r, 2)/bnorm)
}

func shift(p []float64) {
	p0 := p[0]
	for i := range p {
		p[i] -= p0
	}
}

// Hook solves the pressure Poisson equation L·p = rhs.
type Hook interface {
	Solve(p, rhs []float64) error
}

var _ Hook = (*Solver)(nil)

// Projector removes the divergence of a velocity field through a pressure
// solve.
type Projector struct {
	ops    *grid.Operators
	solver Hook
	div    []float64
	grad   []float64
}

func NewProjector(ops *grid.Operators, solver Hook) *Projector {
	return &Projector{
		ops:    ops,
		solver: solver,
		div:    make([]float64, ops.Np),
		grad:   make([]float64, ops.NV),
	}
}

// Project solves L·φ = (M·V + yM)/dt, then sets V ← V − dt·G·φ. φ is
// written to phi.
func (pr *Projector) Project(V, phi, yM []float64, dt float64) error {
	pr.ops.M.MulVecTo(pr.div, V)
	if yM != nil {
		floats.Add(pr.div, yM)
	}
	floats.Scale(1/dt, pr.div)
	if err := pr.solver.Solve(phi, pr.div); err != nil {
		return err
	}
	pr.ops.G.MulVecTo(pr.grad, phi)
	floats.AddScaled(V, -dt, pr.grad)
	return nil
}

// Divergence returns max|M·V + yM|.
func (pr *Projector) Divergence(V, yM []float64) float64 {
	pr.ops.M.MulVecTo(pr.div, V)
	if yM != nil {
		floats.Add(pr.div, yM)
	}
	return floats.Norm(pr.div, math.Inf(1))
}
