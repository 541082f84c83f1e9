package momentum

import (
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sparse"
)

// BodyForce is the volume force term of the momentum equations.
type BodyForce interface {
	// Apply overwrites f with the force at velocity V and time t.
	Apply(f, V []float64, t float64)
}

// Linearized is a body force that depends on V. Jacobian returns ∂f/∂V
// with a fixed pattern.
type Linearized interface {
	BodyForce
	Jacobian(V []float64, t float64) *sparse.CSR
}

type NoForce struct{}

func (NoForce) Apply(f, _ []float64, _ float64) { clear(f) }

// ConstantForce is a precomputed force field.
type ConstantForce struct {
	F []float64
}

func (s ConstantForce) Apply(f, _ []float64, _ float64) { copy(f, s.F) }

// FieldFunc gives component alpha of the force at point x and time t.
type FieldFunc func(alpha int, x []float64, t float64) float64

// FieldForce samples a force function at the velocity points. Steady fields
// are sampled once.
type FieldForce struct {
	fn       FieldFunc
	points   [][][]float64
	offsets  []int
	values   []float64
	unsteady bool
	sampled  bool
}

func NewFieldForce(ops *grid.Operators, fn FieldFunc, unsteady bool) *FieldForce {
	ff := &FieldForce{
		fn:       fn,
		points:   make([][][]float64, ops.Dim),
		offsets:  make([]int, ops.Dim),
		values:   make([]float64, ops.NV),
		unsteady: unsteady,
	}
	for a := 0; a < ops.Dim; a++ {
		ff.points[a] = ops.Points(a)
		ff.offsets[a], _ = ops.Range(a)
	}
	return ff
}

func (ff *FieldForce) Apply(f, _ []float64, t float64) {
	if ff.unsteady || !ff.sampled {
		for a, pts := range ff.points {
			for i, x := range pts {
				ff.values[ff.offsets[a]+i] = ff.fn(a, x, t)
			}
		}
		ff.sampled = true
	}
	copy(f, ff.values)
}

// Damping is the linear drag f = −σ·V.
type Damping struct {
	Sigma float64
	jac   *sparse.CSR
}

func NewDamping(nv int, sigma float64) *Damping {
	return &Damping{Sigma: sigma, jac: sparse.Identity(nv).Scaled(-sigma)}
}

func (d *Damping) Apply(f, V []float64, _ float64) {
	for i, v := range V {
		f[i] = -d.Sigma * v
	}
}

func (d *Damping) Jacobian(_ []float64, _ float64) *sparse.CSR { return d.jac }

// Damped adds linear drag to a force that does not depend on V.
type Damped struct {
	*Damping
	Force BodyForce
}

func NewDamped(nv int, force BodyForce, sigma float64) *Damped {
	return &Damped{Damping: NewDamping(nv, sigma), Force: force}
}

func (d *Damped) Apply(f, V []float64, t float64) {
	d.Force.Apply(f, V, t)
	for i, v := range V {
		f[i] -= d.Sigma * v
	}
}
