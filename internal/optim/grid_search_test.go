package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
)

func smallCavity() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Grid.N = []int{6, 6}
	cfg.Viscosity = 0.05
	cfg.Time = config.TimeConfig{TEnd: 0.03, Dt: 0.01}
	cfg.Output = config.OutputConfig{Every: 1}
	return cfg
}

func TestGridSearch(t *testing.T) {
	g, err := NewGridSearch([]string{"nu", "dt"}, [][]float64{{-1, 0.02}, {0.01, 0.015}})
	require.NoError(t, err)

	best, all, err := g.Search(context.Background(), smallCavity(), experiment.NewRegistry(), Metrics["shortfalls"])
	require.NoError(t, err)
	require.Len(t, all, 4)

	for _, p := range all[:2] {
		assert.True(t, errors.Is(p.Err, config.ErrInvalid), "negative viscosity should fail: %v", p.Err)
		assert.True(t, math.IsInf(p.Value, 1))
	}
	assert.NoError(t, best.Err)
	assert.Equal(t, 0.0, best.Value)
	assert.Equal(t, map[string]float64{"nu": 0.02, "dt": 0.01}, best.Params)
}

func TestGridSearchLeavesBaseUntouched(t *testing.T) {
	base := smallCavity()
	g, err := NewGridSearch([]string{"dt"}, [][]float64{{0.005}})
	require.NoError(t, err)

	_, all, err := g.Search(context.Background(), base, experiment.NewRegistry(), Metrics["peak_energy"])
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Greater(t, all[0].Value, 0.0)
	assert.Equal(t, 0.01, base.Time.Dt)
}

func TestGridSearchAllFail(t *testing.T) {
	g, err := NewGridSearch([]string{"nu"}, [][]float64{{-1}})
	require.NoError(t, err)
	_, all, err := g.Search(context.Background(), smallCavity(), experiment.NewRegistry(), Metrics["drift"])
	assert.Error(t, err)
	assert.Len(t, all, 1)
}

func TestGridSearchCanceled(t *testing.T) {
	g, err := NewGridSearch([]string{"dt"}, [][]float64{{0.01, 0.02}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, all, err := g.Search(ctx, smallCavity(), experiment.NewRegistry(), Metrics["drift"])
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, all)
}

func TestNewGridSearchRejects(t *testing.T) {
	_, err := NewGridSearch([]string{"nu"}, nil)
	assert.Error(t, err)
	_, err = NewGridSearch([]string{"mass"}, [][]float64{{1}})
	assert.Error(t, err)
	_, err = NewGridSearch([]string{"nu"}, [][]float64{{}})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Contains(t, ParamNames(), "nu")
	assert.Equal(t, []string{"divergence", "drift", "elapsed", "peak_energy", "shortfalls"}, MetricNames())
}
