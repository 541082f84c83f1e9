package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/nsflow/internal/stepper"
)

type Simulator struct {
	machine    *stepper.Machine
	processors []Processor
	logger     *log.Logger
}

type Option func(*Simulator)

func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithProcessors(ps ...Processor) Option {
	return func(s *Simulator) { s.processors = append(s.processors, ps...) }
}

func New(machine *stepper.Machine, opts ...Option) *Simulator {
	s := &Simulator{machine: machine}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

func (s *Simulator) AddProcessor(p Processor) { s.processors = append(s.processors, p) }

func (s *Simulator) Machine() *stepper.Machine { return s.machine }

// Run integrates from (V0, p0, t0) to cfg.TEnd. Cancellation is only
// observed between steps. Every processor is finalized exactly once, even
// when the configuration is rejected, and finalize errors are joined to the
// returned error.
func (s *Simulator) Run(ctx context.Context, V0, p0 []float64, t0 float64, cfg Config) (res *Result, err error) {
	start := time.Now()
	res = &Result{}
	defer func() {
		err = errors.Join(err, s.finalize())
		res.Elapsed = time.Since(start)
	}()
	if err := cfg.validate(t0); err != nil {
		return res, err
	}

	m := s.machine
	if err := m.Start(V0, p0, t0, cfg.TEnd); err != nil {
		return res, err
	}
	res.Method = m.Method().Name()
	s.logger.Info("run started",
		"method", res.Method,
		"primary", m.Primary().Name(),
		"t0", t0,
		"tend", cfg.TEnd,
		"dt", cfg.Dt,
	)

	st := m.State()
	for _, p := range s.processors {
		if err := p.Initialize(st); err != nil {
			return res, fmt.Errorf("sim: initialize processor: %w", err)
		}
		if err := p.Process(st); err != nil {
			return res, fmt.Errorf("sim: process initial state: %w", err)
		}
	}

	dt := cfg.Dt
	for m.Phase() == stepper.Running {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("run canceled", "step", st.N, "t", st.T)
			return res, err
		}

		if cfg.adaptive() && st.N%cfg.NAdapt == 0 {
			if dt, err = s.stableStep(cfg); err != nil {
				return res, err
			}
		}
		step := math.Min(dt, cfg.TEnd-st.T)

		rep, err := m.Step(step)
		if err != nil {
			return res, err
		}
		st = m.State()
		res.Steps++
		res.Time = st.T

		if !rep.Converged {
			res.Shortfalls++
			s.logger.Warn("newton did not converge",
				"step", st.N,
				"t", st.T,
				"iterations", rep.Iterations,
				"residual", rep.Residual,
			)
		}
		if m.Switched() {
			res.Method = m.Method().Name()
			s.logger.Info("startup finished", "step", st.N, "method", res.Method)
		}

		for _, p := range s.processors {
			if st.N%every(p) != 0 {
				continue
			}
			if err := p.Process(st); err != nil {
				return res, fmt.Errorf("sim: process step %d: %w", st.N, err)
			}
		}
	}

	res.Final = st.Clone()
	res.Time = st.T
	s.logger.Info("run finished", "steps", res.Steps, "t", res.Time, "shortfalls", res.Shortfalls)
	return res, nil
}

func (s *Simulator) stableStep(cfg Config) (float64, error) {
	dt, err := s.machine.Stepper().StableTimestep(cfg.CFL)
	switch {
	case errors.Is(err, stepper.ErrNoStableStep) && cfg.MaxDt > 0:
		return cfg.MaxDt, nil
	case err != nil:
		return 0, err
	case cfg.MaxDt > 0:
		return math.Min(dt, cfg.MaxDt), nil
	}
	return dt, nil
}

func (s *Simulator) finalize() error {
	var errs []error
	for _, p := range s.processors {
		if err := p.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func every(p Processor) int {
	if n := p.Every(); n > 0 {
		return n
	}
	return 1
}
