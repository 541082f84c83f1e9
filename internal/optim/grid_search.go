package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
	"github.com/san-kum/nsflow/internal/sim"
)

// Setter writes one searched value into a configuration.
type Setter func(c *config.Config, v float64)

// Params are the configuration values a search can vary.
var Params = map[string]Setter{
	"nu":           func(c *config.Config, v float64) { c.Viscosity = v },
	"dt":           func(c *config.Config, v float64) { c.Time.Dt = v },
	"tend":         func(c *config.Config, v float64) { c.Time.TEnd = v },
	"cfl":          func(c *config.Config, v float64) { c.Time.CFL = v },
	"filter_alpha": func(c *config.Config, v float64) { c.Convection.FilterAlpha = v },
	"theta":        func(c *config.Config, v float64) { c.Method.Theta = config.Float(v) },
	"beta":         func(c *config.Config, v float64) { c.Method.Beta = config.Float(v) },
	"lid":          func(c *config.Config, v float64) { c.Lid.Velocity = v },
	"amplitude":    func(c *config.Config, v float64) { c.Initial.Amplitude = v },
	"force":        func(c *config.Config, v float64) { c.Force.Amplitude = v },
}

// Metric scores a finished run. Lower is better.
type Metric func(e *experiment.Experiment, res *sim.Result) float64

var Metrics = map[string]Metric{
	"drift": func(e *experiment.Experiment, _ *sim.Result) float64 {
		return math.Abs(e.Energy.Drift())
	},
	"divergence": func(e *experiment.Experiment, _ *sim.Result) float64 {
		return e.Machine().Stepper().Divergence()
	},
	"peak_energy": func(e *experiment.Experiment, _ *sim.Result) float64 {
		return e.Energy.Peak()
	},
	"shortfalls": func(_ *experiment.Experiment, res *sim.Result) float64 {
		return float64(res.Shortfalls)
	},
	"elapsed": func(_ *experiment.Experiment, res *sim.Result) float64 {
		return res.Elapsed.Seconds()
	},
}

func names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func ParamNames() []string  { return names(Params) }
func MetricNames() []string { return names(Metrics) }

// Point is one evaluated combination. Err is set when the run could not be
// built or failed; Value is then +Inf.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters with %d ranges", len(params), len(ranges))
	}
	for i, p := range params {
		if _, ok := Params[p]; !ok {
			return nil, fmt.Errorf("optim: unknown parameter %q", p)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("optim: empty range for %q", p)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search runs every combination on a copy of base and returns the lowest
// scoring point with all points in visiting order. Failed runs are kept
// as points; only cancellation stops the search.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, reg *experiment.Registry, metric Metric) (Point, []Point, error) {
	best := Point{Value: math.Inf(1)}
	var all []Point
	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, reg, metric, &best, &all)
	if best.Params == nil && err == nil {
		err = errors.New("optim: no run succeeded")
	}
	return best, all, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	reg *experiment.Registry,
	metric Metric,
	best *Point,
	all *[]Point,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		p := evaluate(ctx, current, base, reg, metric)
		if errors.Is(p.Err, context.Canceled) {
			return p.Err
		}
		*all = append(*all, p)
		if p.Err == nil && p.Value < best.Value {
			*best = p
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, reg, metric, best, all); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(ctx context.Context, params map[string]float64, base *config.Config, reg *experiment.Registry, metric Metric) Point {
	p := Point{Params: params, Value: math.Inf(1)}
	cfg := base.Clone()
	for k, v := range params {
		Params[k](cfg, v)
	}
	exp, err := experiment.New(cfg, reg, nil)
	if err != nil {
		p.Err = err
		return p
	}
	res, err := exp.Run(ctx)
	if err != nil {
		p.Err = err
		return p
	}
	p.Value = metric(exp, res)
	return p
}
