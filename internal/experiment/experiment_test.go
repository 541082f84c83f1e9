package experiment

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/methods"
	"github.com/san-kum/nsflow/internal/momentum"
)

func small(cfg *config.Config, n int) *config.Config {
	for a := range cfg.Grid.N {
		cfg.Grid.N[a] = n
	}
	return cfg
}

func TestEveryPresetBuilds(t *testing.T) {
	reg := NewRegistry()
	for _, kind := range config.Cases() {
		for _, name := range config.ListPresets(kind) {
			t.Run(kind+"/"+name, func(t *testing.T) {
				cfg := small(config.GetPreset(kind, name), 6)
				e, err := New(cfg, reg, nil)
				require.NoError(t, err)
				assert.Len(t, e.V0, e.Operators().NV)
				assert.Equal(t, cfg.Method.Name, e.Primary().Name())
			})
		}
	}
}

func TestTaylorGreenDecays(t *testing.T) {
	cfg := small(config.GetPreset("periodic", "taylor_green"), 16)
	cfg.Time = config.TimeConfig{TEnd: 0.1, Dt: 0.01}
	cfg.Output.Every = 1

	e, err := New(cfg, NewRegistry(), nil)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, res.Steps)
	assert.Less(t, e.Energy.Drift(), 0.0)
	assert.Greater(t, e.Energy.Drift(), -0.5)
	assert.Zero(t, e.Divergence.Violations())
	assert.Len(t, e.Energy.History(), 11)
	require.NotNil(t, e.Snapshots)
	assert.NotEmpty(t, e.Snapshots.List())
}

func TestTaylorGreenIsDivergenceFree(t *testing.T) {
	cfg := small(config.GetPreset("periodic", "taylor_green"), 12)
	ops, err := Operators(cfg)
	require.NoError(t, err)

	fn, err := NewRegistry().GetInitial("taylor_green")
	require.NoError(t, err)
	V, err := fn(ops, cfg.Initial, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	div := make([]float64, ops.Np)
	ops.M.MulVecTo(div, V)
	assert.Less(t, floats.Norm(div, math.Inf(1)), 1e-12)
	assert.Greater(t, floats.Norm(V, math.Inf(1)), 0.5)
}

func TestShearLayerNeedsPeriodicGrid(t *testing.T) {
	cfg := small(config.DefaultConfig(), 8)
	cfg.Initial.Kind = "shear_layer"
	_, err := New(cfg, NewRegistry(), nil)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestCavityLid(t *testing.T) {
	cfg := small(config.DefaultConfig(), 8)
	ops, err := Operators(cfg)
	require.NoError(t, err)
	assert.False(t, ops.Unsteady())
	assert.Equal(t, 1.0, ops.Axes[1].High(0, nil, 3))
	assert.Equal(t, 0.0, ops.Axes[1].High(1, nil, 3))

	cfg.Lid = config.LidConfig{Velocity: 2, Frequency: 0.5}
	ops, err = Operators(cfg)
	require.NoError(t, err)
	assert.True(t, ops.Unsteady())
	assert.InDelta(t, -2, ops.Axes[1].High(0, nil, 1), 1e-12)
}

func TestCavityRun(t *testing.T) {
	cfg := small(config.DefaultConfig(), 8)
	cfg.Time = config.TimeConfig{TEnd: 0.05, Dt: 0.01}
	cfg.Output.Every = 1

	e, err := New(cfg, NewRegistry(), nil)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Steps)
	assert.Greater(t, e.Energy.Peak(), 0.0)
	assert.Less(t, e.Machine().Stepper().Divergence(), 1e-10)
}

func TestSiblingsShareGrid(t *testing.T) {
	reg := NewRegistry()
	cfg := small(config.DefaultConfig(), 8)
	cfg.Time = config.TimeConfig{TEnd: 0.03, Dt: 0.01}

	a, err := New(cfg, reg, nil)
	require.NoError(t, err)
	other := cfg.Clone()
	other.Method.Name = "ABCN"
	b, err := a.Sibling(other, reg, nil)
	require.NoError(t, err)
	assert.Same(t, a.Operators(), b.Operators())

	c := b.Case("abcn")
	assert.Equal(t, "abcn", c.Name)
	assert.Equal(t, 0.03, c.Config.TEnd)
}

func TestGetMethods(t *testing.T) {
	reg := NewRegistry()

	p, s, err := reg.GetMethods(config.MethodConfig{Name: "RK44", Startup: "SSP33"})
	require.NoError(t, err)
	assert.Equal(t, "RK44", p.Name())
	assert.Nil(t, s)

	p, s, err = reg.GetMethods(config.MethodConfig{Name: "ABCN", Theta: config.Float(1)})
	require.NoError(t, err)
	require.IsType(t, &methods.ABCN{}, p)
	assert.Equal(t, 1.0, p.(*methods.ABCN).Theta)
	require.NotNil(t, s)
	assert.Equal(t, config.DefaultStartup, s.Name())

	p, _, err = reg.GetMethods(config.MethodConfig{Name: "ABCN", Theta: config.Float(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.(*methods.ABCN).Theta)

	p, _, err = reg.GetMethods(config.MethodConfig{Name: "ABCN"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.(*methods.ABCN).Theta)

	_, _, err = reg.GetMethods(config.MethodConfig{Name: "OneLeg", Beta: config.Float(0)})
	assert.True(t, errors.Is(err, methods.ErrBadParameter))

	p, _, err = reg.GetMethods(config.MethodConfig{Name: "GL2", Newton: "full", MaxIter: 4})
	require.NoError(t, err)
	irk := p.(*methods.ImplicitRK)
	assert.Equal(t, methods.Full, irk.Newton.Type)
	assert.Equal(t, 4, irk.Newton.MaxIter)

	_, _, err = reg.GetMethods(config.MethodConfig{Name: "RK99"})
	assert.True(t, errors.Is(err, methods.ErrUnknownMethod))
	_, _, err = reg.GetMethods(config.MethodConfig{Name: "RK44", Newton: "secant"})
	assert.Error(t, err)
	_, _, err = reg.GetMethods(config.MethodConfig{Name: "OneLeg", Startup: "ABCN"})
	assert.Error(t, err)
}

func TestForces(t *testing.T) {
	reg := NewRegistry()
	cfg := small(config.GetPreset("periodic", "kolmogorov"), 8)
	ops, err := Operators(cfg)
	require.NoError(t, err)

	fn, err := reg.GetForce("kolmogorov")
	require.NoError(t, err)
	force, err := fn(ops, cfg.Force)
	require.NoError(t, err)
	_, damped := force.(momentum.Linearized)
	assert.True(t, damped)

	f := make([]float64, ops.NV)
	force.Apply(f, make([]float64, ops.NV), 0)
	lo, hi := ops.Range(0)
	assert.Greater(t, floats.Norm(f[lo:hi], math.Inf(1)), 0.5)
	assert.Zero(t, floats.Norm(f[hi:], math.Inf(1)))

	fn, err = reg.GetForce("damping")
	require.NoError(t, err)
	_, err = fn(ops, config.ForceConfig{})
	assert.True(t, errors.Is(err, config.ErrInvalid))

	_, err = reg.GetForce("magnetic")
	assert.Error(t, err)
	assert.Equal(t, []string{"constant", "damping", "kolmogorov", "none"}, reg.ListForces())
	assert.Equal(t, []string{"random", "shear_layer", "taylor_green", "zero"}, reg.ListInitial())
}

func TestChannelIsForced(t *testing.T) {
	cfg := small(config.GetPreset("channel", "poiseuille"), 8)
	cfg.Time = config.TimeConfig{TEnd: 0.05, Dt: 0.01}
	e, err := New(cfg, NewRegistry(), nil)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	lo, hi := e.Operators().Range(0)
	assert.Greater(t, floats.Sum(res.Final.V[lo:hi]), 0.0)
}
