package experiment

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/charmbracelet/log"

	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/convection"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
	"github.com/san-kum/nsflow/internal/pressure"
	"github.com/san-kum/nsflow/internal/processors"
	"github.com/san-kum/nsflow/internal/sim"
	"github.com/san-kum/nsflow/internal/stepper"
)

// divergenceLimit is the divergence above which a sample is counted as a
// violation.
const divergenceLimit = 1e-8

// Experiment is one configured flow: grid, pressure factor, machine,
// simulator and the standard processors.
type Experiment struct {
	cfg       *config.Config
	ops       *grid.Operators
	factor    *pressure.Factor
	machine   *stepper.Machine
	simulator *sim.Simulator
	V0        []float64

	Energy     *processors.KineticEnergy
	Divergence *processors.Divergence
	Snapshots  *processors.Snapshots
}

func New(cfg *config.Config, reg *Registry, logger *log.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ops, err := Operators(cfg)
	if err != nil {
		return nil, err
	}
	kind, err := pressure.ParseKind(cfg.Pressure)
	if err != nil {
		return nil, err
	}
	factor, err := pressure.NewFactor(ops, kind)
	if err != nil {
		return nil, err
	}
	return build(cfg, reg, logger, ops, factor)
}

// Sibling builds a second experiment on the same grid and pressure factor,
// for example to compare methods. cfg must describe the same grid.
func (e *Experiment) Sibling(cfg *config.Config, reg *Registry, logger *log.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(cfg, reg, logger, e.ops, e.factor)
}

func build(cfg *config.Config, reg *Registry, logger *log.Logger, ops *grid.Operators, factor *pressure.Factor) (*Experiment, error) {
	conv, err := ConvectionConfig(cfg.Convection)
	if err != nil {
		return nil, err
	}
	forceFn, err := reg.GetForce(cfg.Force.Kind)
	if err != nil {
		return nil, err
	}
	force, err := forceFn(ops, cfg.Force)
	if err != nil {
		return nil, err
	}
	primary, startup, err := reg.GetMethods(cfg.Method)
	if err != nil {
		return nil, err
	}
	setup := stepper.Setup{Ops: ops, Convection: conv, Force: force, Pressure: factor}
	machine, err := stepper.NewMachine(setup, primary, startup, cfg.Method.NStartup)
	if err != nil {
		return nil, err
	}

	initFn, err := reg.GetInitial(cfg.Initial.Kind)
	if err != nil {
		return nil, err
	}
	V0, err := initFn(ops, cfg.Initial, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}

	every := cfg.Output.Every
	e := &Experiment{
		cfg:        cfg,
		ops:        ops,
		factor:     factor,
		machine:    machine,
		V0:         V0,
		Energy:     processors.NewKineticEnergy(ops, every),
		Divergence: processors.NewDivergence(ops, every, divergenceLimit),
	}
	procs := []sim.Processor{e.Energy, e.Divergence}
	if cfg.Output.Snapshots > 0 {
		e.Snapshots = processors.NewSnapshots(snapshotEvery(cfg), cfg.Output.Snapshots)
		procs = append(procs, e.Snapshots)
	}
	if logger != nil {
		procs = append(procs, processors.NewProgress(logger, max(every, 1)*10, cfg.Time.TEnd))
	}
	e.simulator = sim.New(machine, sim.WithLogger(logger), sim.WithProcessors(procs...))
	return e, nil
}

// snapshotEvery spreads the snapshots over the run for a fixed step and
// falls back to the output cadence otherwise.
func snapshotEvery(cfg *config.Config) int {
	if cfg.Time.Dt > 0 {
		steps := int(math.Ceil(cfg.Time.TEnd / cfg.Time.Dt))
		if n := steps / cfg.Output.Snapshots; n > 0 {
			return n
		}
		return 1
	}
	return max(cfg.Output.Every, 1)
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.V0, nil, 0, RunConfig(e.cfg))
}

// Case wraps the experiment for an ensemble run.
func (e *Experiment) Case(name string) sim.Case {
	return sim.Case{Name: name, Sim: e.simulator, V0: e.V0, Config: RunConfig(e.cfg)}
}

func (e *Experiment) AddProcessor(p sim.Processor) { e.simulator.AddProcessor(p) }
func (e *Experiment) Config() *config.Config       { return e.cfg }
func (e *Experiment) Operators() *grid.Operators   { return e.ops }
func (e *Experiment) Machine() *stepper.Machine    { return e.machine }
func (e *Experiment) Simulator() *sim.Simulator    { return e.simulator }
func (e *Experiment) Primary() methods.Method      { return e.machine.Primary() }
func (e *Experiment) PressureKind() pressure.Kind  { return e.factor.Kind() }

func RunConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		TEnd:   cfg.Time.TEnd,
		Dt:     cfg.Time.Dt,
		CFL:    cfg.Time.CFL,
		NAdapt: cfg.Time.NAdapt,
		MaxDt:  cfg.Time.MaxDt,
	}
}

func ConvectionConfig(cc config.ConvectionConfig) (convection.Config, error) {
	reg, err := convection.ParseRegularization(cc.Regularization)
	if err != nil {
		return convection.Config{}, err
	}
	return convection.Config{
		Regularization: reg,
		Order4:         cc.Order4,
		FilterAlpha:    cc.FilterAlpha,
		NewtonFactor:   cc.NewtonFactor,
		Parallel:       cc.Parallel,
	}, nil
}

// Operators builds the grid of a case. The cavity lid is the high wall of
// axis 1 and drives component 0, oscillating as U·cos(2πft) when a
// frequency is set. Channels are periodic along axis 0.
func Operators(cfg *config.Config) (*grid.Operators, error) {
	lengths := cfg.Lengths()
	axes := make([]grid.Axis, len(cfg.Grid.N))
	for a, n := range cfg.Grid.N {
		axes[a] = grid.Axis{N: n, Length: lengths[a], Kind: grid.Wall}
	}
	switch cfg.Case {
	case "periodic":
		for a := range axes {
			axes[a].Kind = grid.Periodic
		}
	case "channel":
		axes[0].Kind = grid.Periodic
	case "cavity":
		axes[1].High = lid(cfg.Lid)
		axes[1].Unsteady = cfg.Lid.Frequency != 0
	default:
		return nil, fmt.Errorf("%w: unknown case %q", config.ErrInvalid, cfg.Case)
	}
	return grid.New(grid.Config{Axes: axes, Viscosity: cfg.Viscosity, Wide: cfg.Grid.Wide})
}

func lid(lc config.LidConfig) grid.WallVelocity {
	u, f := lc.Velocity, lc.Frequency
	return func(alpha int, _ []float64, t float64) float64 {
		if alpha != 0 {
			return 0
		}
		if f == 0 {
			return u
		}
		return u * math.Cos(2*math.Pi*f*t)
	}
}
