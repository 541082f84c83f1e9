package stepper

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/methods"
)

// explicitCache holds the tableau shifted by one stage: row i gives the
// velocity after stage i, and the last row is b.
type explicitCache struct {
	a  [][]float64
	c  []float64
	vn []float64
	k  [][]float64
}

func newExplicitCache(m *methods.ExplicitRK, nv int) *explicitCache {
	s := m.Stages()
	ec := &explicitCache{
		a:  make([][]float64, s),
		c:  make([]float64, s),
		vn: make([]float64, nv),
		k:  make([][]float64, s),
	}
	for i := 0; i < s; i++ {
		ec.a[i] = make([]float64, s)
		if i < s-1 {
			for j := 0; j <= i; j++ {
				ec.a[i][j] = m.A.At(i+1, j)
			}
			ec.c[i] = m.C[i+1]
		} else {
			copy(ec.a[i], m.B)
			ec.c[i] = 1
		}
		ec.k[i] = make([]float64, nv)
	}
	return ec
}

// stepExplicit evaluates the stages in sequence with the pressure left out
// of the momentum and projects every intermediate velocity with a positive
// stage time. The pressure of the last projection becomes the new pressure.
func (s *Stepper) stepExplicit(_ *methods.ExplicitRK, dt float64) (Report, error) {
	ec := s.explicit
	st := &s.state
	s.begin()
	copy(ec.vn, st.V)
	tn := st.T
	ti := tn

	V := st.V
	for i := range ec.k {
		s.asm.Momentum(ec.k[i], V, V, nil, ti, true, false)

		copy(V, ec.vn)
		for j := 0; j <= i; j++ {
			if a := ec.a[i][j]; a != 0 {
				floats.AddScaled(V, dt*a, ec.k[j])
			}
		}

		ti = tn + ec.c[i]*dt
		if ec.c[i] > 0 {
			if err := s.proj.Project(V, s.phi, s.asm.Vectors(ti).YM, ec.c[i]*dt); err != nil {
				return Report{}, err
			}
		}
	}
	copy(st.P, s.phi)
	return Report{Converged: true}, nil
}
