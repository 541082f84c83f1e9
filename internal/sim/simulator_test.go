package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nsflow/internal/convection"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
	"github.com/san-kum/nsflow/internal/momentum"
	"github.com/san-kum/nsflow/internal/pressure"
	"github.com/san-kum/nsflow/internal/sim"
	"github.com/san-kum/nsflow/internal/stepper"
)

type recorder struct {
	every       int
	initialized int
	finalized   int
	steps       []int
	times       []float64
	initErr     error
	finalErr    error
}

func (r *recorder) Every() int { return r.every }

func (r *recorder) Initialize(st stepper.State) error {
	r.initialized++
	return r.initErr
}

func (r *recorder) Process(st stepper.State) error {
	r.steps = append(r.steps, st.N)
	r.times = append(r.times, st.T)
	return nil
}

func (r *recorder) Finalize() error {
	r.finalized++
	return r.finalErr
}

func cavity(n int) *grid.Operators {
	ops, err := grid.New(grid.Config{
		Axes: []grid.Axis{
			{N: n, Length: 1, Kind: grid.Wall},
			{N: n, Length: 1, Kind: grid.Wall, High: func(alpha int, _ []float64, _ float64) float64 {
				if alpha == 0 {
					return 1
				}
				return 0
			}},
		},
		Viscosity: 0.02,
	})
	Expect(err).NotTo(HaveOccurred())
	return ops
}

func machine(ops *grid.Operators, primary, startup string) *stepper.Machine {
	f, err := pressure.NewFactor(ops, pressure.Auto)
	Expect(err).NotTo(HaveOccurred())
	setup := stepper.Setup{Ops: ops, Convection: convection.DefaultConfig(), Force: momentum.NoForce{}, Pressure: f}

	p, err := methods.Lookup(primary, methods.DefaultNewton())
	Expect(err).NotTo(HaveOccurred())
	var s methods.Method
	if startup != "" {
		s, err = methods.Lookup(startup, methods.DefaultNewton())
		Expect(err).NotTo(HaveOccurred())
	}
	m, err := stepper.NewMachine(setup, p, s, 2)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Simulator", func() {
	var (
		ops *grid.Operators
		ctx context.Context
	)

	BeforeEach(func() {
		ops = cavity(8)
		ctx = context.Background()
	})

	Describe("processor cadence", func() {
		It("notifies the initial state and every n-th step", func() {
			every3 := &recorder{every: 3}
			always := &recorder{}
			s := sim.New(machine(ops, "RK44", ""), sim.WithProcessors(every3, always))

			res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 0.1, Dt: 0.01})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(Equal(10))
			Expect(res.Time).To(BeNumerically("~", 0.1, 1e-12))

			Expect(every3.initialized).To(Equal(1))
			Expect(every3.steps).To(Equal([]int{0, 3, 6, 9}))
			Expect(always.steps).To(HaveLen(11))
			Expect(every3.finalized).To(Equal(1))
			Expect(always.finalized).To(Equal(1))
		})

		It("clamps the last step to the end time", func() {
			r := &recorder{}
			s := sim.New(machine(ops, "SSP33", ""), sim.WithProcessors(r))
			res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 0.025, Dt: 0.01})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(Equal(3))
			Expect(r.times[len(r.times)-1]).To(BeNumerically("~", 0.025, 1e-14))
		})
	})

	Describe("finalize", func() {
		It("runs exactly once when a step fails", func() {
			r := &recorder{}
			s := sim.New(machine(ops, "RK44", ""), sim.WithProcessors(r))
			V0 := make([]float64, ops.NV)
			V0[0] = math.Inf(1)

			_, err := s.Run(ctx, V0, nil, 0, sim.Config{TEnd: 1, Dt: 0.01})
			Expect(err).To(HaveOccurred())
			Expect(r.finalized).To(Equal(1))
		})

		It("runs exactly once when the context is canceled", func() {
			r := &recorder{}
			s := sim.New(machine(ops, "RK44", ""), sim.WithProcessors(r))
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := s.Run(canceled, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 1, Dt: 0.01})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(r.initialized).To(Equal(1))
			Expect(r.finalized).To(Equal(1))
		})

		It("runs for every processor when one fails to initialize", func() {
			bad := &recorder{initErr: errors.New("disk full")}
			good := &recorder{}
			s := sim.New(machine(ops, "RK44", ""), sim.WithProcessors(bad, good))

			_, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 1, Dt: 0.01})
			Expect(err).To(MatchError(ContainSubstring("disk full")))
			Expect(bad.finalized).To(Equal(1))
			Expect(good.finalized).To(Equal(1))
			Expect(good.initialized).To(Equal(0))
		})

		It("joins finalize errors into the result", func() {
			r := &recorder{finalErr: errors.New("flush failed")}
			s := sim.New(machine(ops, "RK44", ""), sim.WithProcessors(r))
			res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 0.02, Dt: 0.01})
			Expect(err).To(MatchError(ContainSubstring("flush failed")))
			Expect(res.Steps).To(Equal(2))
		})
	})

	Describe("time step policy", func() {
		It("recomputes an adaptive step and ends exactly at the end time", func() {
			r := &recorder{}
			s := sim.New(machine(ops, "RK44", ""), sim.WithProcessors(r))
			res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 0.2, CFL: 0.5, NAdapt: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(BeNumerically(">", 1))
			Expect(res.Time).To(BeNumerically("~", 0.2, 1e-12))
		})

		It("caps the adaptive step at the maximum step", func() {
			s := sim.New(machine(ops, "ABCN", "RK44"))
			res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 0.05, CFL: 0.5, NAdapt: 1, MaxDt: 0.01})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(BeNumerically(">=", 5))
		})

		DescribeTable("rejects invalid configurations",
			func(cfg sim.Config) {
				s := sim.New(machine(ops, "RK44", ""))
				r := &recorder{}
				s.AddProcessor(r)
				res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, cfg)
				Expect(errors.Is(err, sim.ErrConfig)).To(BeTrue())
				Expect(res.Steps).To(BeZero())
				Expect(r.initialized).To(BeZero())
				Expect(r.finalized).To(Equal(1))
			},
			Entry("end before start", sim.Config{TEnd: -1, Dt: 0.1}),
			Entry("adaptive without cfl", sim.Config{TEnd: 1}),
			Entry("adaptive without interval", sim.Config{TEnd: 1, CFL: 0.5}),
			Entry("negative max dt", sim.Config{TEnd: 1, Dt: 0.1, MaxDt: -1}),
		)
	})

	Describe("startup", func() {
		It("reports the primary method after the switch", func() {
			s := sim.New(machine(ops, "ABCN", "RK44"))
			res, err := s.Run(ctx, make([]float64, ops.NV), nil, 0, sim.Config{TEnd: 0.05, Dt: 0.01})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Method).To(Equal("ABCN"))
			Expect(res.Shortfalls).To(BeZero())
			Expect(s.Machine().Stepper().Divergence()).To(BeNumerically("<", 1e-10))
		})
	})

	Describe("ensemble", func() {
		It("runs independent cases concurrently", func() {
			cases := []sim.Case{
				{Name: "rk44", Sim: sim.New(machine(ops, "RK44", "")), V0: make([]float64, ops.NV), Config: sim.Config{TEnd: 0.05, Dt: 0.01}},
				{Name: "ssp33", Sim: sim.New(machine(ops, "SSP33", "")), V0: make([]float64, ops.NV), Config: sim.Config{TEnd: 0.05, Dt: 0.01}},
			}
			results, err := sim.NewEnsemble(2, cases...).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Steps).To(Equal(5))
				Expect(r.Final.V).To(HaveLen(ops.NV))
			}
			Expect(results[0].Method).To(Equal("RK44"))
			Expect(results[1].Method).To(Equal("SSP33"))
		})
	})
})
