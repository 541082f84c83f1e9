package grid

import (
	"errors"
	"fmt"

	"github.com/san-kum/nsflow/internal/sparse"
)

var (
	// ErrBadGrid indicates an unusable grid description.
	ErrBadGrid = errors.New("grid: invalid grid")
)

type Kind int

const (
	Periodic Kind = iota
	Wall
)

func (k Kind) String() string {
	if k == Wall {
		return "wall"
	}
	return "periodic"
}

// WallVelocity returns the tangential velocity of component alpha at the
// wall point x and time t.
type WallVelocity func(alpha int, x []float64, t float64) float64

// Axis describes one direction of the box. Wall axes carry no-penetration
// walls on both sides; Low and High set the tangential wall velocity (nil is
// no-slip).
type Axis struct {
	N        int
	Length   float64
	Kind     Kind
	Low      WallVelocity
	High     WallVelocity
	Unsteady bool
}

type Config struct {
	Axes      []Axis
	Viscosity float64
	// Wide also builds the width-3 convection stencils. Only fully periodic
	// grids support them.
	Wide bool
}

// Operators is the full operator set of a uniform staggered grid. It is
// read-only after New and safe for concurrent readers.
type Operators struct {
	Dim       int
	Axes      []Axis
	H         []float64
	Viscosity float64
	NV, Np    int

	// I, A and C are indexed [alpha][beta]: interpolation of the convected
	// component alpha, averaging of the convecting component beta, and
	// differencing of the flux back onto the alpha unknowns.
	I, A, C    [][]*sparse.CSR
	I3, A3, C3 [][]*sparse.CSR

	Lap, Diff *sparse.CSR
	M, G      *sparse.CSR

	offsets []int
	comp    []shape
	cells   shape
	taps    []tap
}

func New(cfg Config) (*Operators, error) {
	d := len(cfg.Axes)
	if d < 2 || d > 3 {
		return nil, fmt.Errorf("%w: dimension must be 2 or 3, got %d", ErrBadGrid, d)
	}
	if cfg.Viscosity < 0 {
		return nil, fmt.Errorf("%w: viscosity must be non-negative, got %g", ErrBadGrid, cfg.Viscosity)
	}
	o := &Operators{
		Dim:       d,
		Axes:      append([]Axis(nil), cfg.Axes...),
		H:         make([]float64, d),
		Viscosity: cfg.Viscosity,
	}
	for a, ax := range o.Axes {
		if ax.N < 3 {
			return nil, fmt.Errorf("%w: axis %d needs at least 3 cells, got %d", ErrBadGrid, a, ax.N)
		}
		if ax.Length <= 0 {
			return nil, fmt.Errorf("%w: axis %d length must be positive, got %g", ErrBadGrid, a, ax.Length)
		}
		if cfg.Wide && (ax.Kind != Periodic || ax.N < 4) {
			return nil, fmt.Errorf("%w: width-3 stencils need periodic axes of at least 4 cells (axis %d)", ErrBadGrid, a)
		}
		o.H[a] = ax.Length / float64(ax.N)
	}

	o.cells = make(shape, d)
	for a := range o.Axes {
		o.cells[a] = o.Axes[a].N
	}
	o.Np = o.cells.size()
	o.offsets = make([]int, d+1)
	o.comp = make([]shape, d)
	for a := 0; a < d; a++ {
		s := o.cells.clone()
		s[a] = o.nf(a)
		o.comp[a] = s
		o.offsets[a+1] = o.offsets[a] + s.size()
	}
	o.NV = o.offsets[d]

	o.I, o.A, o.C = o.convection(1)
	if cfg.Wide {
		o.I3, o.A3, o.C3 = o.convection(3)
	}
	o.Lap = o.laplacian()
	o.Diff = o.Lap.Scaled(o.Viscosity)
	o.M = o.divergence()
	o.G = o.M.Transpose().Scaled(-1)
	return o, nil
}

// Range returns the half-open index range of component alpha in a velocity
// vector.
func (o *Operators) Range(alpha int) (int, int) {
	return o.offsets[alpha], o.offsets[alpha+1]
}

// Wide reports whether the width-3 stencils are available.
func (o *Operators) Wide() bool { return o.I3 != nil }

// Unsteady reports whether any wall velocity depends on time.
func (o *Operators) Unsteady() bool {
	for _, ax := range o.Axes {
		if ax.Kind == Wall && ax.Unsteady {
			return true
		}
	}
	return false
}

// CellVolume is the volume of one pressure cell.
func (o *Operators) CellVolume() float64 {
	v := 1.0
	for _, h := range o.H {
		v *= h
	}
	return v
}

// Points returns the coordinates of every unknown of component alpha.
func (o *Operators) Points(alpha int) [][]float64 {
	s := o.comp[alpha]
	pts := make([][]float64, s.size())
	s.each(func(idx []int, lin int) {
		pts[lin] = o.unknownPoint(alpha, idx)
	})
	return pts
}

// CellPoints returns the coordinates of the pressure unknowns.
func (o *Operators) CellPoints() [][]float64 {
	pts := make([][]float64, o.Np)
	o.cells.each(func(idx []int, lin int) {
		x := make([]float64, o.Dim)
		for g := range x {
			x[g] = (float64(idx[g]) + 0.5) * o.H[g]
		}
		pts[lin] = x
	})
	return pts
}

// CellVelocity writes component alpha averaged to the cell centers into
// dst, which has length Np.
func (o *Operators) CellVelocity(dst, V []float64, alpha int) {
	o.I[alpha][alpha].MulVecTo(dst, V)
}

// nf is the number of face unknowns along axis g.
func (o *Operators) nf(g int) int {
	if o.Axes[g].Kind == Periodic {
		return o.Axes[g].N
	}
	return o.Axes[g].N - 1
}

// nb is the number of face positions along g including walls.
func (o *Operators) nb(g int) int {
	if o.Axes[g].Kind == Periodic {
		return o.Axes[g].N
	}
	return o.Axes[g].N + 1
}

// facePos maps a face unknown index to its position j (x = j·h).
func (o *Operators) facePos(g, f int) int {
	if o.Axes[g].Kind == Periodic {
		return f
	}
	return f + 1
}

// faceAt maps a face position to its unknown index, or -1 on a wall.
func (o *Operators) faceAt(g, j int) int {
	n := o.Axes[g].N
	if o.Axes[g].Kind == Periodic {
		return wrap(j, n)
	}
	if j <= 0 || j >= n {
		return -1
	}
	return j - 1
}

// cellAt maps a cell position to its index, or -1 outside a walled box.
func (o *Operators) cellAt(g, k int) int {
	n := o.Axes[g].N
	if o.Axes[g].Kind == Periodic {
		return wrap(k, n)
	}
	if k < 0 || k >= n {
		return -1
	}
	return k
}

// fluxPos maps a flux position along g to its index in a flux shape.
func (o *Operators) fluxPos(g, j int) int {
	if o.Axes[g].Kind == Periodic {
		return wrap(j, o.Axes[g].N)
	}
	return j
}

func (o *Operators) fluxShape(alpha, beta int) shape {
	if alpha == beta {
		return o.cells.clone()
	}
	s := o.cells.clone()
	s[alpha] = o.nf(alpha)
	s[beta] = o.nb(beta)
	return s
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

type shape []int

func (s shape) size() int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

func (s shape) clone() shape { return append(shape(nil), s...) }

func (s shape) index(idx []int) int {
	lin, stride := 0, 1
	for g, n := range s {
		lin += idx[g] * stride
		stride *= n
	}
	return lin
}

// each visits every multi-index with axis 0 varying fastest. fn must not
// keep idx.
func (s shape) each(fn func(idx []int, lin int)) {
	idx := make([]int, len(s))
	total := s.size()
	for lin := 0; lin < total; lin++ {
		fn(idx, lin)
		for g := range idx {
			idx[g]++
			if idx[g] < s[g] {
				break
			}
			idx[g] = 0
		}
	}
}

// StreamVelocity samples a two-dimensional stream function on cell corners
// and returns the velocity u = ∂ψ/∂y, v = −∂ψ/∂x. The result is discretely
// divergence-free.
func (o *Operators) StreamVelocity(psi func(x, y float64) float64) ([]float64, error) {
	if o.Dim != 2 {
		return nil, fmt.Errorf("%w: stream functions need a 2D grid, got %dD", ErrBadGrid, o.Dim)
	}
	corner := func(i, j int) float64 {
		if o.Axes[0].Kind == Periodic {
			i = wrap(i, o.Axes[0].N)
		}
		if o.Axes[1].Kind == Periodic {
			j = wrap(j, o.Axes[1].N)
		}
		return psi(float64(i)*o.H[0], float64(j)*o.H[1])
	}
	v := make([]float64, o.NV)
	o.comp[0].each(func(idx []int, lin int) {
		i := o.facePos(0, idx[0])
		j := idx[1]
		v[o.offsets[0]+lin] = (corner(i, j+1) - corner(i, j)) / o.H[1]
	})
	o.comp[1].each(func(idx []int, lin int) {
		i := idx[0]
		j := o.facePos(1, idx[1])
		v[o.offsets[1]+lin] = -(corner(i+1, j) - corner(i, j)) / o.H[0]
	})
	return v, nil
}
