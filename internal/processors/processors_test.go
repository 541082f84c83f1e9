package processors

import (
	"bytes"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/stepper"
)

func periodic(t *testing.T, n int) *grid.Operators {
	t.Helper()
	ops, err := grid.New(grid.Config{
		Axes: []grid.Axis{
			{N: n, Length: 1, Kind: grid.Periodic},
			{N: n, Length: 1, Kind: grid.Periodic},
		},
	})
	require.NoError(t, err)
	return ops
}

func uniform(ops *grid.Operators, u float64) stepper.State {
	V := make([]float64, ops.NV)
	lo, hi := ops.Range(0)
	for i := lo; i < hi; i++ {
		V[i] = u
	}
	return stepper.State{V: V, P: make([]float64, ops.Np)}
}

func TestKineticEnergy(t *testing.T) {
	ops := periodic(t, 4)
	k := NewKineticEnergy(ops, 1)
	st := uniform(ops, 2)
	require.NoError(t, k.Initialize(st))

	// ½·u²·|Ω| for u = 2 on the unit square.
	require.NoError(t, k.Process(st))
	last, ok := k.Last()
	require.True(t, ok)
	assert.InDelta(t, 2, last.Value, 1e-12)

	half := uniform(ops, 1)
	half.N, half.T = 1, 0.1
	require.NoError(t, k.Process(half))
	assert.InDelta(t, -0.75, k.Drift(), 1e-12)
	assert.InDelta(t, 2, k.Peak(), 1e-12)
	assert.Len(t, k.History(), 2)
	assert.Equal(t, "kinetic_energy", k.Name())

	require.NoError(t, k.Initialize(st))
	assert.Empty(t, k.History())
}

func TestDivergence(t *testing.T) {
	ops := periodic(t, 4)
	d := NewDivergence(ops, 2, 1e-8)
	st := uniform(ops, 1)
	require.NoError(t, d.Initialize(st))
	require.NoError(t, d.Process(st))

	st.V[0] += 1
	require.NoError(t, d.Process(st))

	h := d.History()
	require.Len(t, h, 2)
	assert.InDelta(t, 0, h[0].Value, 1e-12)
	assert.InDelta(t, 4, h[1].Value, 1e-12)
	assert.Equal(t, 1, d.Violations())
	assert.Equal(t, 2, d.Every())
}

func TestSnapshotsKeepNewest(t *testing.T) {
	ops := periodic(t, 3)
	s := NewSnapshots(1, 2)
	st := uniform(ops, 1)
	require.NoError(t, s.Initialize(st))
	for n := 0; n < 4; n++ {
		st.N = n
		st.V[0] = float64(n)
		require.NoError(t, s.Process(st))
	}
	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].N)
	assert.Equal(t, 3.0, list[1].V[0])
	assert.Equal(t, 2.0, list[0].V[0], "snapshots are copies")
}

func TestProgressLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	p := NewProgress(logger, 1, 1)
	require.NoError(t, p.Initialize(stepper.State{}))
	require.NoError(t, p.Process(stepper.State{N: 1, T: 0.5, Dt: 0.5}))
	require.NoError(t, p.Finalize())
	assert.Contains(t, buf.String(), "progress")
	assert.Contains(t, buf.String(), "step=1")
}

func TestFunc(t *testing.T) {
	calls := 0
	f := Func{N: 3, Fn: func(st stepper.State) error {
		calls++
		assert.False(t, math.IsNaN(st.T))
		return nil
	}}
	assert.Equal(t, 3, f.Every())
	require.NoError(t, f.Process(stepper.State{}))
	assert.Equal(t, 1, calls)
}
