package stepper

import (
	"fmt"
	"math"

	"github.com/san-kum/nsflow/internal/methods"
)

type Phase int

const (
	Uninitialized Phase = iota
	Running
	Switching
	Finished
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Switching:
		return "switching"
	case Finished:
		return "finished"
	default:
		return "uninitialized"
	}
}

// Machine drives a stepper from its initial state to the end time. A
// multistep primary method runs behind a one-step startup method for the
// first nstartup steps.
type Machine struct {
	setup    Setup
	primary  methods.Method
	startup  methods.Method
	nstartup int

	st       *Stepper
	phase    Phase
	tEnd     float64
	switched bool
}

func NewMachine(setup Setup, primary, startup methods.Method, nstartup int) (*Machine, error) {
	m := &Machine{setup: setup, primary: primary}
	if methods.NeedsStartup(primary) {
		if startup == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStartup, primary.Name())
		}
		if methods.NeedsStartup(startup) {
			return nil, fmt.Errorf("%w: startup %s is itself multistep", ErrNoStartup, startup.Name())
		}
		m.startup = startup
		m.nstartup = max(nstartup, 1)
	}
	return m, nil
}

// Start projects V0 onto the divergence-free space and enters Running. A
// nil p0 is replaced by the pressure consistent with the projected V0.
func (m *Machine) Start(V0, p0 []float64, t0, tEnd float64) error {
	if m.phase != Uninitialized {
		return fmt.Errorf("stepper: start in phase %s", m.phase)
	}
	method := m.primary
	if m.startup != nil {
		method = m.startup
	}
	st, err := New(m.setup, method, V0, p0, t0)
	if err != nil {
		return err
	}
	if err := st.Project(); err != nil {
		return fmt.Errorf("stepper: initial projection: %w", err)
	}
	if p0 == nil {
		if err := st.SolvePressure(); err != nil {
			return fmt.Errorf("stepper: initial pressure: %w", err)
		}
	}
	m.st = st
	m.tEnd = tEnd
	m.phase = Running
	if m.done() {
		m.phase = Finished
	}
	return nil
}

// Step advances one step and performs the startup switch when due. The
// returned error is a *StepError for numerical failures.
func (m *Machine) Step(dt float64) (Report, error) {
	m.switched = false
	if m.phase != Running {
		return Report{}, fmt.Errorf("%w: phase %s", ErrNotRunning, m.phase)
	}
	rep, err := m.st.Step(dt)
	if err != nil {
		return rep, err
	}
	if m.startup != nil && m.st.Method() == m.startup && m.st.State().N >= m.nstartup {
		m.phase = Switching
		next, err := Transfer(m.st, m.primary)
		if err != nil {
			return rep, err
		}
		m.st = next
		m.switched = true
		m.phase = Running
	}
	if m.done() {
		m.phase = Finished
	}
	return rep, nil
}

func (m *Machine) done() bool {
	t := m.st.State().T
	return t >= m.tEnd-1e-12*math.Max(1, math.Abs(m.tEnd))
}

func (m *Machine) Phase() Phase            { return m.phase }
func (m *Machine) State() State            { return m.st.State() }
func (m *Machine) Stepper() *Stepper       { return m.st }
func (m *Machine) Method() methods.Method  { return m.st.Method() }
func (m *Machine) Primary() methods.Method { return m.primary }
func (m *Machine) EndTime() float64        { return m.tEnd }

// Switched reports whether the last Step moved from the startup method to
// the primary one.
func (m *Machine) Switched() bool { return m.switched }
