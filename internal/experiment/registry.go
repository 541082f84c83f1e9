package experiment

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
	"github.com/san-kum/nsflow/internal/momentum"
)

// InitialFunc builds an initial velocity. It need not be divergence-free;
// the machine projects it on start.
type InitialFunc func(ops *grid.Operators, ic config.InitialConfig, rng *rand.Rand) ([]float64, error)

type ForceFunc func(ops *grid.Operators, fc config.ForceConfig) (momentum.BodyForce, error)

type Registry struct {
	initial map[string]InitialFunc
	forces  map[string]ForceFunc
}

func NewRegistry() *Registry {
	r := &Registry{
		initial: make(map[string]InitialFunc),
		forces:  make(map[string]ForceFunc),
	}

	r.initial["zero"] = func(ops *grid.Operators, _ config.InitialConfig, _ *rand.Rand) ([]float64, error) {
		return make([]float64, ops.NV), nil
	}
	r.initial["taylor_green"] = taylorGreen
	r.initial["shear_layer"] = shearLayer
	r.initial["random"] = func(ops *grid.Operators, ic config.InitialConfig, rng *rand.Rand) ([]float64, error) {
		v := make([]float64, ops.NV)
		for i := range v {
			v[i] = ic.Amplitude * rng.NormFloat64()
		}
		return v, nil
	}

	r.forces["none"] = func(*grid.Operators, config.ForceConfig) (momentum.BodyForce, error) {
		return momentum.NoForce{}, nil
	}
	r.forces["constant"] = func(ops *grid.Operators, fc config.ForceConfig) (momentum.BodyForce, error) {
		f := make([]float64, ops.NV)
		lo, hi := ops.Range(0)
		for i := lo; i < hi; i++ {
			f[i] = fc.Amplitude
		}
		return withDamping(ops, momentum.ConstantForce{F: f}, fc.Sigma), nil
	}
	r.forces["kolmogorov"] = func(ops *grid.Operators, fc config.ForceConfig) (momentum.BodyForce, error) {
		k := fc.Wavenumber
		if k <= 0 {
			k = 1
		}
		ly := ops.Axes[1].Length
		fn := func(alpha int, x []float64, _ float64) float64 {
			if alpha != 0 {
				return 0
			}
			return fc.Amplitude * math.Sin(2*math.Pi*float64(k)*x[1]/ly)
		}
		return withDamping(ops, momentum.NewFieldForce(ops, fn, false), fc.Sigma), nil
	}
	r.forces["damping"] = func(ops *grid.Operators, fc config.ForceConfig) (momentum.BodyForce, error) {
		if fc.Sigma <= 0 {
			return nil, fmt.Errorf("%w: damping needs a positive sigma, got %g", config.ErrInvalid, fc.Sigma)
		}
		return momentum.NewDamping(ops.NV, fc.Sigma), nil
	}

	return r
}

func withDamping(ops *grid.Operators, f momentum.BodyForce, sigma float64) momentum.BodyForce {
	if sigma <= 0 {
		return f
	}
	return momentum.NewDamped(ops.NV, f, sigma)
}

func (r *Registry) GetInitial(name string) (InitialFunc, error) {
	fn, ok := r.initial[name]
	if !ok {
		return nil, fmt.Errorf("unknown initial condition: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetForce(name string) (ForceFunc, error) {
	fn, ok := r.forces[name]
	if !ok {
		return nil, fmt.Errorf("unknown force: %s", name)
	}
	return fn, nil
}

// GetMethods resolves the primary method and, for multistep primaries, the
// startup method.
func (r *Registry) GetMethods(mc config.MethodConfig) (primary, startup methods.Method, err error) {
	newton, err := newtonSettings(mc)
	if err != nil {
		return nil, nil, err
	}
	primary, err = lookup(mc.Name, mc, newton)
	if err != nil {
		return nil, nil, err
	}
	if !methods.NeedsStartup(primary) {
		return primary, nil, nil
	}
	name := mc.Startup
	if name == "" {
		name = config.DefaultStartup
	}
	startup, err = lookup(name, mc, newton)
	if err != nil {
		return nil, nil, fmt.Errorf("startup: %w", err)
	}
	if methods.NeedsStartup(startup) {
		return nil, nil, fmt.Errorf("startup %s is itself multistep", name)
	}
	return primary, startup, nil
}

func lookup(name string, mc config.MethodConfig, newton methods.Newton) (methods.Method, error) {
	switch name {
	case "ABCN":
		if mc.Theta == nil {
			return methods.DefaultABCN(), nil
		}
		return methods.NewABCN(1.5, -0.5, *mc.Theta)
	case "OneLeg":
		if mc.Beta == nil {
			return methods.NewOneLeg(0.5)
		}
		return methods.NewOneLeg(*mc.Beta)
	}
	return methods.Lookup(name, newton)
}

func newtonSettings(mc config.MethodConfig) (methods.Newton, error) {
	n := methods.DefaultNewton()
	kind, err := methods.ParseNewtonType(mc.Newton)
	if err != nil {
		return n, err
	}
	n.Type = kind
	if mc.MaxIter > 0 {
		n.MaxIter = mc.MaxIter
	}
	if mc.AbsTol > 0 {
		n.AbsTol = mc.AbsTol
	}
	if mc.RelTol > 0 {
		n.RelTol = mc.RelTol
	}
	return n, nil
}

func (r *Registry) ListInitial() []string { return sortedKeys(r.initial) }
func (r *Registry) ListForces() []string  { return sortedKeys(r.forces) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// taylorGreen is the vortex array ψ = A·L/(2π)·sin(2πx/Lx)·sin(2πy/Ly). On
// a wall grid the stream function vanishes on every wall.
func taylorGreen(ops *grid.Operators, ic config.InitialConfig, _ *rand.Rand) ([]float64, error) {
	lx, ly := ops.Axes[0].Length, ops.Axes[1].Length
	return ops.StreamVelocity(func(x, y float64) float64 {
		return ic.Amplitude * lx / (2 * math.Pi) * math.Sin(2*math.Pi*x/lx) * math.Sin(2*math.Pi*y/ly)
	})
}

// shearLayer is the doubly periodic double shear layer with a sinusoidal
// cross-stream perturbation. Width is the layer thickness.
func shearLayer(ops *grid.Operators, ic config.InitialConfig, _ *rand.Rand) ([]float64, error) {
	for a, ax := range ops.Axes {
		if ax.Kind != grid.Periodic {
			return nil, fmt.Errorf("%w: shear layer needs periodic axes (axis %d is %s)", config.ErrInvalid, a, ax.Kind)
		}
	}
	delta := ic.Width
	if delta <= 0 {
		delta = 1.0 / 30
	}
	lx, ly := ops.Axes[0].Length, ops.Axes[1].Length
	v := make([]float64, ops.NV)
	for a := 0; a < 2; a++ {
		lo, _ := ops.Range(a)
		for i, x := range ops.Points(a) {
			if a == 0 {
				y := x[1] / ly
				if y <= 0.5 {
					v[lo+i] = ic.Amplitude * math.Tanh((y-0.25)/delta)
				} else {
					v[lo+i] = ic.Amplitude * math.Tanh((0.75-y)/delta)
				}
				continue
			}
			v[lo+i] = 0.05 * ic.Amplitude * math.Sin(2*math.Pi*x[0]/lx)
		}
	}
	return v, nil
}
