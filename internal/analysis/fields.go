package analysis

import (
	"math"

	"github.com/san-kum/nsflow/internal/grid"
)

// Fields are cell-centered views of one solution. Cells are raveled with
// axis 0 fastest.
type Fields struct {
	Shape     []int
	Velocity  [][]float64
	Pressure  []float64
	Speed     []float64
	Vorticity []float64
}

// CellFields averages V to the cell centers. Vorticity is only filled on
// 2D grids. A nil p leaves Pressure nil.
func CellFields(ops *grid.Operators, V, p []float64) *Fields {
	f := &Fields{
		Shape:    make([]int, ops.Dim),
		Velocity: make([][]float64, ops.Dim),
		Speed:    make([]float64, ops.Np),
	}
	for a, ax := range ops.Axes {
		f.Shape[a] = ax.N
	}
	for a := range f.Velocity {
		f.Velocity[a] = make([]float64, ops.Np)
		ops.CellVelocity(f.Velocity[a], V, a)
		for i, u := range f.Velocity[a] {
			f.Speed[i] += u * u
		}
	}
	for i, s := range f.Speed {
		f.Speed[i] = math.Sqrt(s)
	}
	if p != nil {
		f.Pressure = append([]float64(nil), p...)
	}
	if ops.Dim == 2 {
		f.Vorticity = Vorticity(ops, f.Velocity[0], f.Velocity[1])
	}
	return f
}

// Vorticity returns ω = ∂v/∂x − ∂u/∂y from cell-centered velocities of a
// 2D grid. Periodic axes use central differences throughout; wall axes fall
// back to one-sided differences in the first and last cell.
func Vorticity(ops *grid.Operators, u, v []float64) []float64 {
	nx, ny := ops.Axes[0].N, ops.Axes[1].N
	w := make([]float64, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			dvdx := derivative(ops, 0, i, func(k int) float64 { return v[k+nx*j] })
			dudy := derivative(ops, 1, j, func(k int) float64 { return u[i+nx*k] })
			w[i+nx*j] = dvdx - dudy
		}
	}
	return w
}

func derivative(ops *grid.Operators, axis, i int, at func(int) float64) float64 {
	n, h := ops.Axes[axis].N, ops.H[axis]
	if ops.Axes[axis].Kind == grid.Periodic {
		return (at((i+1)%n) - at((i-1+n)%n)) / (2 * h)
	}
	switch i {
	case 0:
		return (at(1) - at(0)) / h
	case n - 1:
		return (at(n-1) - at(n-2)) / h
	}
	return (at(i+1) - at(i-1)) / (2 * h)
}

// Rows reshapes a 2D cell field into rows of constant y, bottom row first.
func Rows(shape []int, field []float64) [][]float64 {
	nx, ny := shape[0], shape[1]
	rows := make([][]float64, ny)
	for j := range rows {
		rows[j] = field[j*nx : (j+1)*nx]
	}
	return rows
}
