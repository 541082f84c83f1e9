package stepper

import (
	"errors"
	"fmt"
)

var (
	// ErrNonFinite indicates a NaN or Inf in the velocity or pressure.
	ErrNonFinite = errors.New("stepper: non-finite value in solution")

	// ErrDimension indicates a field whose length does not match the grid.
	ErrDimension = errors.New("stepper: field length does not match grid")

	// ErrBadTimestep indicates a non-positive or non-finite time step.
	ErrBadTimestep = errors.New("stepper: time step must be positive and finite")

	// ErrNoHistory indicates a multistep method started without a previous step.
	ErrNoHistory = errors.New("stepper: method needs a previous step")

	// ErrNoStartup indicates a multistep method configured without a one-step startup method.
	ErrNoStartup = errors.New("stepper: multistep method needs a one-step startup method")

	// ErrNotRunning indicates a step requested outside the running phase.
	ErrNotRunning = errors.New("stepper: machine is not running")

	// ErrNoStableStep indicates no stability bound limits the time step.
	ErrNoStableStep = errors.New("stepper: no stability bound available for adaptive time step")

	// ErrTooLarge indicates a dense linear system above the supported size.
	ErrTooLarge = errors.New("stepper: linear system too large for dense factorization")
)

// StepError carries the step context of a failure.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d at t=%g: %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
