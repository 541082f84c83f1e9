package convection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sparse"
)

var (
	// ErrUnknownRegularization indicates an unsupported regularization tag.
	ErrUnknownRegularization = errors.New("convection: unknown regularization")

	// ErrUnsupported indicates a convection option the grid cannot provide.
	ErrUnsupported = errors.New("convection: unsupported configuration")
)

type Regularization int

const (
	NoReg Regularization = iota
	C2
	C4
	Leray
)

func (r Regularization) String() string {
	switch r {
	case C2:
		return "c2"
	case C4:
		return "c4"
	case Leray:
		return "leray"
	default:
		return "none"
	}
}

func ParseRegularization(s string) (Regularization, error) {
	switch s {
	case "", "none", "noreg":
		return NoReg, nil
	case "c2", "C2":
		return C2, nil
	case "c4", "C4":
		return C4, nil
	case "leray", "Leray":
		return Leray, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRegularization, s)
}

type Config struct {
	Regularization Regularization
	// Order4 adds the Richardson combination of the width-1 and width-3
	// stencils. It needs a fully periodic grid built with wide stencils.
	Order4 bool
	// FilterAlpha is the width of the diffusive filter I + α·Lap.
	FilterAlpha float64
	// NewtonFactor scales the derivative through the convecting field:
	// 0 is Picard, 1 is Newton.
	NewtonFactor float64
	// Parallel evaluates the momentum components concurrently.
	Parallel bool
}

func DefaultConfig() Config {
	return Config{Regularization: NoReg, NewtonFactor: 1}
}

// Strategy computes c(V, ϕ) and optionally ∂c/∂V with ϕ = V. Each instance
// owns its scratch and must not be shared between goroutines.
type Strategy interface {
	// Evaluate overwrites c. When jac is set the matrix returned by Jacobian
	// is refreshed in place and returned.
	Evaluate(c, V, phi []float64, bc *grid.Vectors, jac bool) *sparse.CSR
	// Jacobian returns the fixed-pattern Jacobian storage.
	Jacobian() *sparse.CSR
	// FilteredDivergence is max|M·V̄ + yM| of the last evaluation.
	FilteredDivergence() float64
	Name() string
}

func New(cfg Config, ops *grid.Operators) (Strategy, error) {
	if cfg.Order4 && !ops.Wide() {
		return nil, fmt.Errorf("%w: fourth order needs a periodic grid with wide stencils", ErrUnsupported)
	}
	if cfg.FilterAlpha < 0 {
		return nil, fmt.Errorf("%w: negative filter width %g", ErrUnsupported, cfg.FilterAlpha)
	}
	name := cfg.Regularization.String()
	if cfg.Order4 {
		name += "/order4"
	}
	switch cfg.Regularization {
	case NoReg:
		return newNoReg(cfg, ops, name), nil
	case C2:
		return newC2(cfg, ops, name), nil
	case C4:
		return newC4(cfg, ops, name), nil
	case Leray:
		return newLeray(cfg, ops, name), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownRegularization, int(cfg.Regularization))
}

type noReg struct {
	name string
	b    *base
	jac  *sparse.BlockSum
}

func newNoReg(cfg Config, ops *grid.Operators, name string) *noReg {
	b := newBase(ops, cfg.Order4, cfg.Parallel)
	s := &noReg{name: name, b: b}
	s.jac = sparse.NewBlockSum(ops.NV, ops.NV).
		Add(b.jc, 0, 0, 1).
		Add(b.jp, 0, 0, cfg.NewtonFactor)
	s.jac.Build()
	return s
}

func (s *noReg) Evaluate(c, V, phi []float64, bc *grid.Vectors, jac bool) *sparse.CSR {
	s.b.eval(c, V, phi, bc, bc, jac)
	if !jac {
		return nil
	}
	s.jac.Eval()
	return s.jac.Out()
}

func (s *noReg) Jacobian() *sparse.CSR       { return s.jac.Out() }
func (s *noReg) FilteredDivergence() float64 { return 0 }
func (s *noReg) Name() string                { return s.name }

// filter applies V̄ = F·V + α·yLap and tracks the divergence of the
// filtered field.
type filter struct {
	ops   *grid.Operators
	alpha float64
	F     *sparse.CSR
	div   []float64
	max   float64
}

func newFilter(ops *grid.Operators, alpha float64) *filter {
	return &filter{ops: ops, alpha: alpha, F: ops.Filter(alpha), div: make([]float64, ops.Np)}
}

func (f *filter) apply(dst, x []float64, bc *grid.Vectors) {
	f.F.MulVecTo(dst, x)
	if bc != nil && f.alpha != 0 {
		floats.AddScaled(dst, f.alpha, bc.YLap)
	}
}

func (f *filter) recordDivergence(v []float64, bc *grid.Vectors) {
	f.ops.M.MulVecTo(f.div, v)
	if bc != nil {
		floats.Add(f.div, bc.YM)
	}
	f.max = floats.Norm(f.div, math.Inf(1))
}
