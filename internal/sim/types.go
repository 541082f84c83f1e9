package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/nsflow/internal/stepper"
)

// ErrConfig indicates an invalid run configuration.
var ErrConfig = errors.New("sim: invalid run configuration")

// Processor observes the run. Process is called for the initial state and
// after every step whose index is a multiple of Every. Finalize is called
// exactly once when the run ends, however it ends.
type Processor interface {
	Every() int
	Initialize(st stepper.State) error
	Process(st stepper.State) error
	Finalize() error
}

// Config sets the time horizon and the step size policy. A positive Dt is
// a fixed step; otherwise Δt = CFL·(stable step) is recomputed every
// NAdapt steps.
type Config struct {
	TEnd   float64
	Dt     float64
	CFL    float64
	NAdapt int
	MaxDt  float64
}

func (c Config) adaptive() bool { return c.Dt <= 0 }

func (c Config) validate(t0 float64) error {
	if c.TEnd < t0 {
		return fmt.Errorf("%w: end time %g before start time %g", ErrConfig, c.TEnd, t0)
	}
	if c.adaptive() {
		if c.CFL <= 0 {
			return fmt.Errorf("%w: adaptive stepping needs a positive cfl, got %g", ErrConfig, c.CFL)
		}
		if c.NAdapt <= 0 {
			return fmt.Errorf("%w: adaptive stepping needs a positive interval, got %d", ErrConfig, c.NAdapt)
		}
	}
	if c.MaxDt < 0 {
		return fmt.Errorf("%w: negative max dt %g", ErrConfig, c.MaxDt)
	}
	return nil
}

type Result struct {
	Steps      int
	Time       float64
	Shortfalls int
	Method     string
	Elapsed    time.Duration
	Final      stepper.State
}
