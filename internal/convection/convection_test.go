package convection

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/grid"
)

func periodicOps(t *testing.T, n int, wide bool) *grid.Operators {
	t.Helper()
	ops, err := grid.New(grid.Config{
		Axes: []grid.Axis{
			{N: n, Length: 1, Kind: grid.Periodic},
			{N: n, Length: 1, Kind: grid.Periodic},
		},
		Viscosity: 0.01,
		Wide:      wide,
	})
	require.NoError(t, err)
	return ops
}

func cavityOps(t *testing.T, n int) *grid.Operators {
	t.Helper()
	lid := func(alpha int, _ []float64, _ float64) float64 {
		if alpha == 0 {
			return 1
		}
		return 0
	}
	ops, err := grid.New(grid.Config{
		Axes: []grid.Axis{
			{N: n, Length: 1, Kind: grid.Wall},
			{N: n, Length: 1, Kind: grid.Wall, High: lid},
		},
		Viscosity: 0.01,
	})
	require.NoError(t, err)
	return ops
}

func randomField(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()*2 - 1
	}
	return v
}

func TestConstantFieldHasNoConvection(t *testing.T) {
	ops := periodicOps(t, 6, true)
	v := make([]float64, ops.NV)
	for a := 0; a < ops.Dim; a++ {
		lo, hi := ops.Range(a)
		for i := lo; i < hi; i++ {
			v[i] = 0.5 + float64(a)
		}
	}
	bc := ops.NewVectors(0)
	for _, reg := range []Regularization{NoReg, C2, C4, Leray} {
		for _, order4 := range []bool{false, true} {
			s, err := New(Config{Regularization: reg, Order4: order4, FilterAlpha: 1e-3, NewtonFactor: 1}, ops)
			require.NoError(t, err)
			c := make([]float64, ops.NV)
			s.Evaluate(c, v, v, bc, false)
			assert.InDelta(t, 0, floats.Norm(c, math.Inf(1)), 1e-12, s.Name())
		}
	}
}

func TestShearFlowHasNoConvection(t *testing.T) {
	ops := periodicOps(t, 8, false)
	v := make([]float64, ops.NV)
	pts := ops.Points(0)
	for i, x := range pts {
		v[i] = math.Sin(2 * math.Pi * x[1])
	}
	s, err := New(DefaultConfig(), ops)
	require.NoError(t, err)
	c := make([]float64, ops.NV)
	s.Evaluate(c, v, v, ops.NewVectors(0), false)
	assert.InDelta(t, 0, floats.Norm(c, math.Inf(1)), 1e-12)
}

// TestTaylorGreenConvergence checks the observed order of the convection of
// the Taylor–Green vortex, whose exact convection is π·sin(4π·x_α).
func TestTaylorGreenConvergence(t *testing.T) {
	field := func(alpha int, x []float64) float64 {
		if alpha == 0 {
			return math.Sin(2*math.Pi*x[0]) * math.Cos(2*math.Pi*x[1])
		}
		return -math.Cos(2*math.Pi*x[0]) * math.Sin(2*math.Pi*x[1])
	}
	maxError := func(n int, order4 bool) float64 {
		ops := periodicOps(t, n, true)
		v := make([]float64, ops.NV)
		for a := 0; a < ops.Dim; a++ {
			lo, _ := ops.Range(a)
			for i, x := range ops.Points(a) {
				v[lo+i] = field(a, x)
			}
		}
		s, err := New(Config{Order4: order4, NewtonFactor: 1}, ops)
		require.NoError(t, err)
		c := make([]float64, ops.NV)
		s.Evaluate(c, v, v, ops.NewVectors(0), false)

		e := 0.0
		for a := 0; a < ops.Dim; a++ {
			lo, _ := ops.Range(a)
			for i, x := range ops.Points(a) {
				e = math.Max(e, math.Abs(c[lo+i]-math.Pi*math.Sin(4*math.Pi*x[a])))
			}
		}
		return e
	}

	tests := []struct {
		name   string
		order4 bool
		order  float64
	}{
		{"second order", false, 2},
		{"fourth order", true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := []float64{maxError(8, tt.order4), maxError(16, tt.order4), maxError(32, tt.order4)}
			for i := 1; i < len(errs); i++ {
				rate := math.Log2(errs[i-1] / errs[i])
				assert.InDelta(t, tt.order, rate, 0.2, "refinement %d: errors %v", i, errs)
			}
		})
	}
}

func TestC2WithZeroWidthMatchesNoReg(t *testing.T) {
	ops := cavityOps(t, 6)
	bc := ops.NewVectors(0)
	v := randomField(ops.NV, 1)

	plain, err := New(DefaultConfig(), ops)
	require.NoError(t, err)
	filtered, err := New(Config{Regularization: C2, FilterAlpha: 0, NewtonFactor: 1}, ops)
	require.NoError(t, err)

	c0 := make([]float64, ops.NV)
	c1 := make([]float64, ops.NV)
	j0 := plain.Evaluate(c0, v, v, bc, true)
	j1 := filtered.Evaluate(c1, v, v, bc, true)

	for i := range c0 {
		assert.InDelta(t, c0[i], c1[i], 1e-14)
	}
	for i := 0; i < ops.NV; i++ {
		for j := 0; j < ops.NV; j++ {
			assert.InDelta(t, j0.At(i, j), j1.At(i, j), 1e-12)
		}
	}
}

// TestJacobianMatchesFiniteDifferences uses central differences, which are
// exact up to rounding for a quadratic operator.
func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	tests := []struct {
		name string
		ops  *grid.Operators
		cfg  Config
	}{
		{"noreg cavity", cavityOps(t, 5), Config{NewtonFactor: 1}},
		{"noreg periodic", periodicOps(t, 5, false), Config{NewtonFactor: 1}},
		{"order4", periodicOps(t, 6, true), Config{Order4: true, NewtonFactor: 1}},
		{"c2 cavity", cavityOps(t, 5), Config{Regularization: C2, FilterAlpha: 0.002, NewtonFactor: 1}},
		{"c4 cavity", cavityOps(t, 5), Config{Regularization: C4, FilterAlpha: 0.002, NewtonFactor: 1}},
		{"c4 order4", periodicOps(t, 6, true), Config{Regularization: C4, Order4: true, FilterAlpha: 0.002, NewtonFactor: 1}},
		{"leray cavity", cavityOps(t, 5), Config{Regularization: Leray, FilterAlpha: 0.002, NewtonFactor: 1}},
		{"parallel", cavityOps(t, 5), Config{NewtonFactor: 1, Parallel: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := tt.ops
			bc := ops.NewVectors(0)
			s, err := New(tt.cfg, ops)
			require.NoError(t, err)

			v := randomField(ops.NV, 7)
			d := randomField(ops.NV, 8)
			c := make([]float64, ops.NV)
			jac := s.Evaluate(c, v, v, bc, true)
			require.Same(t, s.Jacobian(), jac)

			jd := make([]float64, ops.NV)
			jac.MulVecTo(jd, d)

			const eps = 1e-4
			vp := append([]float64(nil), v...)
			vm := append([]float64(nil), v...)
			floats.AddScaled(vp, eps, d)
			floats.AddScaled(vm, -eps, d)
			cp := make([]float64, ops.NV)
			cm := make([]float64, ops.NV)
			s.Evaluate(cp, vp, vp, bc, false)
			s.Evaluate(cm, vm, vm, bc, false)

			scale := math.Max(1, floats.Norm(jd, math.Inf(1)))
			for i := range jd {
				fd := (cp[i] - cm[i]) / (2 * eps)
				assert.InDelta(t, fd, jd[i], 1e-6*scale, "row %d", i)
			}
		})
	}
}

func TestPicardDropsConvectingDerivative(t *testing.T) {
	ops := periodicOps(t, 5, false)
	bc := ops.NewVectors(0)
	v := randomField(ops.NV, 3)

	picard, err := New(Config{NewtonFactor: 0}, ops)
	require.NoError(t, err)
	c := make([]float64, ops.NV)
	jac := picard.Evaluate(c, v, v, bc, true)

	// Without boundary data c(V) is the Picard operator applied to V.
	jv := make([]float64, ops.NV)
	jac.MulVecTo(jv, v)
	for i := range c {
		assert.InDelta(t, c[i], jv[i], 1e-10)
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	ops := cavityOps(t, 7)
	bc := ops.NewVectors(0)
	v := randomField(ops.NV, 11)

	serial, err := New(Config{Regularization: C4, FilterAlpha: 0.001, NewtonFactor: 1}, ops)
	require.NoError(t, err)
	parallel, err := New(Config{Regularization: C4, FilterAlpha: 0.001, NewtonFactor: 1, Parallel: true}, ops)
	require.NoError(t, err)

	c0 := make([]float64, ops.NV)
	c1 := make([]float64, ops.NV)
	j0 := serial.Evaluate(c0, v, v, bc, true)
	j1 := parallel.Evaluate(c1, v, v, bc, true)
	assert.Equal(t, c0, c1)
	assert.Equal(t, j0.Data, j1.Data)
}

func TestFilteredDivergence(t *testing.T) {
	ops := periodicOps(t, 8, false)
	bc := ops.NewVectors(0)
	v, err := ops.StreamVelocity(func(x, y float64) float64 {
		return math.Sin(2*math.Pi*x) * math.Cos(2*math.Pi*y)
	})
	require.NoError(t, err)

	for _, reg := range []Regularization{C2, C4, Leray} {
		s, err := New(Config{Regularization: reg, FilterAlpha: 1e-3, NewtonFactor: 1}, ops)
		require.NoError(t, err)
		c := make([]float64, ops.NV)
		s.Evaluate(c, v, v, bc, false)
		assert.InDelta(t, 0, s.FilteredDivergence(), 1e-9, reg.String())
	}

	s, err := New(Config{Regularization: C2, FilterAlpha: 1e-3, NewtonFactor: 1}, ops)
	require.NoError(t, err)
	c := make([]float64, ops.NV)
	s.Evaluate(c, randomField(ops.NV, 5), randomField(ops.NV, 5), bc, false)
	assert.Greater(t, s.FilteredDivergence(), 1e-3)
}

func TestConfigurationErrors(t *testing.T) {
	_, err := ParseRegularization("smagorinsky")
	assert.True(t, errors.Is(err, ErrUnknownRegularization))

	ops := cavityOps(t, 4)
	_, err = New(Config{Order4: true}, ops)
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = New(Config{Regularization: Regularization(42)}, ops)
	assert.True(t, errors.Is(err, ErrUnknownRegularization))

	_, err = New(Config{Regularization: C2, FilterAlpha: -1}, ops)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestParseRegularization(t *testing.T) {
	for _, s := range []string{"none", "c2", "c4", "leray"} {
		r, err := ParseRegularization(s)
		require.NoError(t, err)
		assert.Equal(t, s, r.String())
	}
}
