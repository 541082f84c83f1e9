package momentum

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/convection"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sparse"
)

// Cache is the scratch of one assembler. Every buffer is written before it
// is read on each call.
type Cache struct {
	C  []float64
	D  []float64
	F  []float64
	Gp []float64
}

func NewCache(nv int) *Cache {
	return &Cache{
		C:  make([]float64, nv),
		D:  make([]float64, nv),
		F:  make([]float64, nv),
		Gp: make([]float64, nv),
	}
}

// Assembler evaluates F = −c + Diff·V + yDiff + f − (G·p + yG) and its
// Jacobian ∇F = −∇c + Diff + ∇f. It owns its boundary vectors, convection
// strategy and cache, so separate assemblers never share mutable state.
type Assembler struct {
	ops   *grid.Operators
	conv  convection.Strategy
	force BodyForce
	bc    *grid.Vectors
	cache *Cache
	jac   *sparse.BlockSum
}

func New(ops *grid.Operators, conv convection.Strategy, force BodyForce) *Assembler {
	if force == nil {
		force = NoForce{}
	}
	a := &Assembler{
		ops:   ops,
		conv:  conv,
		force: force,
		bc:    ops.NewVectors(0),
		cache: NewCache(ops.NV),
	}
	a.jac = sparse.NewBlockSum(ops.NV, ops.NV).
		Add(conv.Jacobian(), 0, 0, -1).
		Add(ops.Diff, 0, 0, 1)
	if lin, ok := force.(Linearized); ok {
		a.jac.Add(lin.Jacobian(make([]float64, ops.NV), 0), 0, 0, 1)
	}
	a.jac.Build()
	return a
}

// Vectors returns the boundary vectors refreshed for time t.
func (a *Assembler) Vectors(t float64) *grid.Vectors {
	if a.ops.Unsteady() && a.bc.T != t {
		a.ops.SetBCVectors(a.bc, t)
	}
	return a.bc
}

func (a *Assembler) Strategy() convection.Strategy { return a.conv }

// Momentum overwrites F. With nopressure the pressure term is left out.
// When jac is set the Jacobian is refreshed in place and returned.
func (a *Assembler) Momentum(F, V, phi, p []float64, t float64, nopressure, jac bool) *sparse.CSR {
	bc := a.Vectors(t)
	c := a.cache

	a.conv.Evaluate(c.C, V, phi, bc, jac)
	a.ops.Diff.MulVecTo(c.D, V)
	floats.Add(c.D, bc.YDiff)
	a.force.Apply(c.F, V, t)

	floats.SubTo(F, c.D, c.C)
	floats.Add(F, c.F)
	if !nopressure {
		a.ops.G.MulVecTo(c.Gp, p)
		floats.Add(c.Gp, bc.YG)
		floats.Sub(F, c.Gp)
	}
	if !jac {
		return nil
	}
	return a.Jacobian(V, t)
}

// Jacobian refreshes ∇F from the convection Jacobian of the last jac
// evaluation.
func (a *Assembler) Jacobian(V []float64, t float64) *sparse.CSR {
	if lin, ok := a.force.(Linearized); ok {
		lin.Jacobian(V, t)
	}
	a.jac.Eval()
	return a.jac.Out()
}

// Convection overwrites c with c(V, ϕ).
func (a *Assembler) Convection(c, V, phi []float64, t float64) {
	a.conv.Evaluate(c, V, phi, a.Vectors(t), false)
}

// Diffusion overwrites d with Diff·V + yDiff.
func (a *Assembler) Diffusion(d, V []float64, t float64) {
	a.ops.Diff.MulVecTo(d, V)
	floats.Add(d, a.Vectors(t).YDiff)
}

func (a *Assembler) BodyForce(f, V []float64, t float64) {
	a.force.Apply(f, V, t)
}

// PressureGradient overwrites gp with G·p + yG.
func (a *Assembler) PressureGradient(gp, p []float64, t float64) {
	a.ops.G.MulVecTo(gp, p)
	floats.Add(gp, a.Vectors(t).YG)
}

// ConvectionJacobian evaluates c(V, V) and returns ∇c.
func (a *Assembler) ConvectionJacobian(V []float64, t float64) *sparse.CSR {
	return a.conv.Evaluate(a.cache.C, V, V, a.Vectors(t), true)
}
