package processors

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/stepper"
)

// Divergence records max|M·V + yM| and counts samples above threshold.
type Divergence struct {
	series
	ops        *grid.Operators
	bc         *grid.Vectors
	div        []float64
	threshold  float64
	violations int
}

func NewDivergence(ops *grid.Operators, every int, threshold float64) *Divergence {
	return &Divergence{
		series:    series{name: "divergence", every: every},
		ops:       ops,
		bc:        ops.NewVectors(0),
		div:       make([]float64, ops.Np),
		threshold: threshold,
	}
}

func (d *Divergence) Initialize(_ stepper.State) error {
	d.reset()
	d.violations = 0
	return nil
}

func (d *Divergence) Process(st stepper.State) error {
	if d.ops.Unsteady() && d.bc.T != st.T {
		d.ops.SetBCVectors(d.bc, st.T)
	}
	d.ops.M.MulVecTo(d.div, st.V)
	floats.Add(d.div, d.bc.YM)
	v := floats.Norm(d.div, math.Inf(1))
	if d.threshold > 0 && v > d.threshold {
		d.violations++
	}
	d.record(st, v)
	return nil
}

func (d *Divergence) Violations() int { return d.violations }
