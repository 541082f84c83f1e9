package grid

import "github.com/san-kum/nsflow/internal/sparse"

type tapTarget int

const (
	tapI tapTarget = iota
	tapLap
)

// tap is one wall contribution to a boundary vector.
type tap struct {
	target      tapTarget
	alpha, beta int
	row         int
	scale       float64
	wall        WallVelocity
	x           []float64
}

func (o *Operators) addWallTap(target tapTarget, alpha, beta, row int, scale float64, low bool, x []float64) {
	wall := o.Axes[beta].High
	if low {
		wall = o.Axes[beta].Low
	}
	if wall == nil {
		return
	}
	o.taps = append(o.taps, tap{target: target, alpha: alpha, beta: beta, row: row, scale: scale, wall: wall, x: x})
}

// Vectors holds the boundary inhomogeneities of the operator set at time T.
// Walls are impermeable, so YA, YA3, YI3, YM and YG stay zero; they are kept
// so every term carries its vector.
type Vectors struct {
	T float64

	YI, YA   [][][]float64
	YI3, YA3 [][][]float64

	YLap, YDiff []float64
	YM          []float64
	YG          []float64
}

// NewVectors allocates boundary vectors owned by the caller and fills them
// for time t.
func (o *Operators) NewVectors(t float64) *Vectors {
	v := &Vectors{
		YI:    rowsOf(o.I),
		YA:    rowsOf(o.A),
		YLap:  make([]float64, o.NV),
		YDiff: make([]float64, o.NV),
		YM:    make([]float64, o.Np),
		YG:    make([]float64, o.NV),
	}
	if o.Wide() {
		v.YI3 = rowsOf(o.I3)
		v.YA3 = rowsOf(o.A3)
	}
	o.SetBCVectors(v, t)
	return v
}

// SetBCVectors recomputes the time-dependent boundary vectors in v.
func (o *Operators) SetBCVectors(v *Vectors, t float64) {
	v.T = t
	for a := range v.YI {
		for b := range v.YI[a] {
			clear(v.YI[a][b])
		}
	}
	clear(v.YLap)
	for _, tp := range o.taps {
		val := tp.scale * tp.wall(tp.alpha, tp.x, t)
		switch tp.target {
		case tapI:
			v.YI[tp.alpha][tp.beta][tp.row] += val
		case tapLap:
			v.YLap[tp.row] += val
		}
	}
	for i, y := range v.YLap {
		v.YDiff[i] = o.Viscosity * y
	}
}

func rowsOf(ops [][]*sparse.CSR) [][][]float64 {
	out := make([][][]float64, len(ops))
	for a := range ops {
		out[a] = make([][]float64, len(ops[a]))
		for b, m := range ops[a] {
			r, _ := m.Dims()
			out[a][b] = make([]float64, r)
		}
	}
	return out
}
