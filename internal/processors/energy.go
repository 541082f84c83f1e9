package processors

import (
	"math"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/stepper"
)

// KineticEnergy records ½·Σ V²·|cell|.
type KineticEnergy struct {
	series
	ops     *grid.Operators
	initial float64
	peak    float64
}

func NewKineticEnergy(ops *grid.Operators, every int) *KineticEnergy {
	return &KineticEnergy{
		series: series{name: "kinetic_energy", every: every},
		ops:    ops,
	}
}

func (k *KineticEnergy) Initialize(st stepper.State) error {
	k.reset()
	k.initial = Energy(k.ops, st.V)
	k.peak = k.initial
	return nil
}

func (k *KineticEnergy) Process(st stepper.State) error {
	e := Energy(k.ops, st.V)
	k.peak = math.Max(k.peak, e)
	k.record(st, e)
	return nil
}

func (k *KineticEnergy) Peak() float64 { return k.peak }

// Drift is the relative change of the last recorded energy.
func (k *KineticEnergy) Drift() float64 {
	last, ok := k.Last()
	if !ok || k.initial == 0 {
		return 0
	}
	return (last.Value - k.initial) / k.initial
}

func Energy(ops *grid.Operators, V []float64) float64 {
	e := 0.0
	for _, v := range V {
		e += v * v
	}
	return 0.5 * e * ops.CellVolume()
}
