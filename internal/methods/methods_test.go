package methods

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		explicit bool
	}{
		{"FE11", true},
		{"SSP22", true},
		{"SSP33", true},
		{"SSP42", true},
		{"SSP43", true},
		{"Wray3", true},
		{"RK44", true},
		{"RK38", true},
		{"BE11", false},
		{"GL1", false},
		{"GL2", false},
		{"RIA1", false},
		{"RIIA2", false},
		{"RIIA3", false},
		{"SDIRK2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Lookup(tt.name, DefaultNewton())
			require.NoError(t, err)
			_, isExp := m.(*ExplicitRK)
			assert.Equal(t, tt.explicit, isExp)
			assert.Equal(t, tt.name, m.Name())
		})
	}
}

func TestTableauConsistency(t *testing.T) {
	for name, e := range tableaus {
		var sum float64
		for _, b := range e.b {
			sum += b
		}
		assert.InDelta(t, 1, sum, 1e-14, "%s: weights must sum to one", name)
	}
}

func TestUpperTriangleTolerance(t *testing.T) {
	m, err := NewRungeKutta("nearly", [][]float64{{0, 1e-16}, {1, 0}}, []float64{0.5, 0.5}, []float64{0, 1}, 2)
	require.NoError(t, err)
	_, ok := m.(*ExplicitRK)
	assert.True(t, ok)

	m, err = NewRungeKutta("trap", [][]float64{{0, 0}, {0.5, 0.5}}, []float64{0.5, 0.5}, []float64{0, 1}, 2)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrSingularTableau), "trapezoidal A is singular, got %v", err)
}

func TestShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		a    [][]float64
		b, c []float64
	}{
		{"short b", [][]float64{{0, 0}, {1, 0}}, []float64{1}, []float64{0, 1}},
		{"short c", [][]float64{{0, 0}, {1, 0}}, []float64{0.5, 0.5}, []float64{0}},
		{"ragged A", [][]float64{{0}, {1, 0}}, []float64{0.5, 0.5}, []float64{0, 1}},
		{"empty", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRungeKutta(tt.name, tt.a, tt.b, tt.c, 1)
			assert.True(t, errors.Is(err, ErrTableauShape), "got %v", err)
		})
	}
}

func TestImplicitNewtonSettings(t *testing.T) {
	n := Newton{Type: Full, MaxIter: 3, AbsTol: 1e-9, RelTol: 1e-6}
	m, err := NewImplicit("BE", [][]float64{{1}}, []float64{1}, []float64{1}, 1, n)
	require.NoError(t, err)
	assert.Equal(t, n, m.Newton)
	assert.Equal(t, 1, m.Stages())

	_, err = NewImplicit("BE", [][]float64{{1}}, []float64{1}, []float64{1}, 1, Newton{MaxIter: 0})
	assert.True(t, errors.Is(err, ErrBadParameter))
}

func TestMultistep(t *testing.T) {
	m, err := Lookup("ABCN", DefaultNewton())
	require.NoError(t, err)
	ab := m.(*ABCN)
	assert.Equal(t, 1.5, ab.Alpha1)
	assert.Equal(t, -0.5, ab.Alpha2)
	assert.Equal(t, 0.5, ab.Theta)
	assert.True(t, NeedsStartup(m))

	ol, err := Lookup("OneLeg", DefaultNewton())
	require.NoError(t, err)
	assert.True(t, NeedsStartup(ol))

	rk, err := Lookup("RK44", DefaultNewton())
	require.NoError(t, err)
	assert.False(t, NeedsStartup(rk))

	_, err = NewABCN(1, 1, 0.5)
	assert.True(t, errors.Is(err, ErrBadParameter))
	_, err = NewOneLeg(0)
	assert.True(t, errors.Is(err, ErrBadParameter))
}

func TestUnknownMethod(t *testing.T) {
	_, err := Lookup("RK99", DefaultNewton())
	assert.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestListIsSortedAndComplete(t *testing.T) {
	list := List()
	assert.Len(t, list, len(tableaus)+2)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}
}

func TestStabilityRegions(t *testing.T) {
	rk, _ := Lookup("RK44", DefaultNewton())
	assert.InDelta(t, 2*math.Sqrt2, rk.Stability().Imag, 1e-15)
	be, _ := Lookup("BE11", DefaultNewton())
	assert.True(t, math.IsInf(be.Stability().Real, 1))
}

func TestParseNewtonType(t *testing.T) {
	for _, s := range []string{"none", "approximate", "full"} {
		n, err := ParseNewtonType(s)
		require.NoError(t, err)
		assert.Equal(t, s, n.String())
	}
	_, err := ParseNewtonType("secant")
	assert.Error(t, err)
}
