package methods

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTableauShape indicates A, b and c of a Butcher tableau disagree.
	ErrTableauShape = errors.New("methods: tableau dimension mismatch")

	// ErrSingularTableau indicates an implicit tableau whose A is not invertible.
	ErrSingularTableau = errors.New("methods: implicit tableau has singular A")

	// ErrUnknownMethod indicates a name missing from the registry.
	ErrUnknownMethod = errors.New("methods: unknown method")

	// ErrBadParameter indicates a multistep coefficient outside its valid range.
	ErrBadParameter = errors.New("methods: parameter out of valid range")
)

// explicitTol bounds the upper triangle of an explicit tableau.
const explicitTol = 1e-14

// Region gives the extent of a method's stability region along the negative
// real axis and the imaginary axis. Zero means no usable extent; +Inf means
// unconditionally stable.
type Region struct {
	Real float64
	Imag float64
}

// Method is one of ExplicitRK, ImplicitRK, ABCN or OneLeg.
type Method interface {
	Name() string
	Stability() Region
	method()
}

type tableau struct {
	name   string
	A      *mat.Dense
	B      []float64
	C      []float64
	R      float64
	region Region
}

func (t *tableau) Name() string      { return t.name }
func (t *tableau) Stability() Region { return t.region }
func (t *tableau) Stages() int       { return len(t.B) }

// ExplicitRK is a Runge–Kutta method with strictly lower-triangular A.
type ExplicitRK struct{ tableau }

func (*ExplicitRK) method() {}

type NewtonType int

const (
	// NoJacobian replaces the momentum Jacobian by zero, leaving I/Δt.
	NoJacobian NewtonType = iota
	// Approximate builds the Jacobian once per step at the step start.
	Approximate
	// Full rebuilds the Jacobian on every Newton iteration.
	Full
)

func (n NewtonType) String() string {
	switch n {
	case NoJacobian:
		return "none"
	case Approximate:
		return "approximate"
	default:
		return "full"
	}
}

func ParseNewtonType(s string) (NewtonType, error) {
	switch s {
	case "none", "no_jacobian":
		return NoJacobian, nil
	case "approximate", "":
		return Approximate, nil
	case "full":
		return Full, nil
	}
	return 0, fmt.Errorf("methods: unknown newton type %q", s)
}

type Newton struct {
	Type    NewtonType
	MaxIter int
	AbsTol  float64
	RelTol  float64
}

func DefaultNewton() Newton {
	return Newton{Type: Approximate, MaxIter: 10, AbsTol: 1e-12, RelTol: 1e-10}
}

// ImplicitRK is a Runge–Kutta method solved by Newton–Raphson iteration on
// the coupled stage system.
type ImplicitRK struct {
	tableau
	Newton Newton
}

func (*ImplicitRK) method() {}

// ABCN treats convection with second-order Adams–Bashforth and diffusion
// with the θ-scheme.
type ABCN struct {
	Alpha1, Alpha2 float64
	Theta          float64
}

func (*ABCN) method()           {}
func (*ABCN) Name() string      { return "ABCN" }
func (*ABCN) Stability() Region { return Region{Real: math.Inf(1), Imag: 0.5} }

// OneLeg is the one-leg β method with extrapolated momentum.
type OneLeg struct {
	Beta float64
}

func (*OneLeg) method()           {}
func (*OneLeg) Name() string      { return "OneLeg" }
func (*OneLeg) Stability() Region { return Region{Real: 1, Imag: 1} }

// NewRungeKutta classifies the tableau and returns an *ExplicitRK or an
// *ImplicitRK with default Newton settings.
func NewRungeKutta(name string, a [][]float64, b, c []float64, r float64) (Method, error) {
	t, err := newTableau(name, a, b, c, r)
	if err != nil {
		return nil, err
	}
	if isExplicit(t.A) {
		return &ExplicitRK{tableau: *t}, nil
	}
	return newImplicit(t, DefaultNewton())
}

// NewImplicit builds an implicit method with explicit Newton settings.
func NewImplicit(name string, a [][]float64, b, c []float64, r float64, n Newton) (*ImplicitRK, error) {
	t, err := newTableau(name, a, b, c, r)
	if err != nil {
		return nil, err
	}
	return newImplicit(t, n)
}

func newImplicit(t *tableau, n Newton) (*ImplicitRK, error) {
	if math.Abs(mat.Det(t.A)) < explicitTol {
		return nil, fmt.Errorf("%w: %s", ErrSingularTableau, t.name)
	}
	if n.MaxIter <= 0 {
		return nil, fmt.Errorf("%w: maxiter must be positive, got %d", ErrBadParameter, n.MaxIter)
	}
	if n.AbsTol < 0 || n.RelTol < 0 {
		return nil, fmt.Errorf("%w: negative newton tolerance", ErrBadParameter)
	}
	return &ImplicitRK{tableau: *t, Newton: n}, nil
}

func newTableau(name string, a [][]float64, b, c []float64, r float64) (*tableau, error) {
	s := len(b)
	if s == 0 || len(a) != s || len(c) != s {
		return nil, fmt.Errorf("%w: %s has |A|=%d, |b|=%d, |c|=%d", ErrTableauShape, name, len(a), len(b), len(c))
	}
	A := mat.NewDense(s, s, nil)
	for i, row := range a {
		if len(row) != s {
			return nil, fmt.Errorf("%w: %s row %d has %d entries, want %d", ErrTableauShape, name, i, len(row), s)
		}
		A.SetRow(i, row)
	}
	return &tableau{
		name: name,
		A:    A,
		B:    append([]float64(nil), b...),
		C:    append([]float64(nil), c...),
		R:    r,
	}, nil
}

func isExplicit(a *mat.Dense) bool {
	s, _ := a.Dims()
	for i := 0; i < s; i++ {
		for j := i; j < s; j++ {
			if math.Abs(a.At(i, j)) > explicitTol {
				return false
			}
		}
	}
	return true
}

func NewABCN(alpha1, alpha2, theta float64) (*ABCN, error) {
	if theta < 0 || theta > 1 {
		return nil, fmt.Errorf("%w: theta must be in [0, 1], got %g", ErrBadParameter, theta)
	}
	if math.Abs(alpha1+alpha2-1) > 1e-12 {
		return nil, fmt.Errorf("%w: alpha1+alpha2 must be 1, got %g", ErrBadParameter, alpha1+alpha2)
	}
	return &ABCN{Alpha1: alpha1, Alpha2: alpha2, Theta: theta}, nil
}

func DefaultABCN() *ABCN {
	return &ABCN{Alpha1: 1.5, Alpha2: -0.5, Theta: 0.5}
}

func NewOneLeg(beta float64) (*OneLeg, error) {
	if beta <= 0 {
		return nil, fmt.Errorf("%w: beta must be positive, got %g", ErrBadParameter, beta)
	}
	return &OneLeg{Beta: beta}, nil
}

// NeedsStartup reports whether m uses history older than the current step.
func NeedsStartup(m Method) bool {
	switch m.(type) {
	case *ABCN, *OneLeg:
		return true
	}
	return false
}
