package stepper

import (
	"fmt"
	"math"
)

// StableTimestep estimates the largest stable Δt for the current velocity,
// scaled by cfl. Eigenvalues of ∇c and Diff are bounded by their largest
// absolute row sums and compared with the method's stability region. A
// method without an imaginary-axis extent uses its real extent for both; one
// without any extent has no stable step.
func (s *Stepper) StableTimestep(cfl float64) (float64, error) {
	if !(cfl > 0) {
		return 0, fmt.Errorf("%w: cfl %g", ErrBadTimestep, cfl)
	}
	region := s.method.Stability()
	ops := s.setup.Ops
	if region.Real == 0 && region.Imag == 0 {
		return 0, fmt.Errorf("%w: %s has no stability region", ErrNoStableStep, s.method.Name())
	}

	imag := region.Imag
	if imag == 0 {
		imag = region.Real
	}

	dt := math.Inf(1)
	if !math.IsInf(imag, 1) {
		lc := s.asm.ConvectionJacobian(s.state.V, s.state.T).MaxAbsRowSum()
		if lc > 0 {
			dt = math.Min(dt, imag/lc)
		}
	}
	if !math.IsInf(region.Real, 1) {
		ld := ops.Diff.MaxAbsRowSum()
		if ld > 0 {
			dt = math.Min(dt, region.Real/ld)
		}
	}
	if math.IsInf(dt, 1) {
		return 0, ErrNoStableStep
	}
	return cfl * dt, nil
}
