package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Heatmap renders rows (bottom row first) into cols x lines characters.
// Each character holds two stacked samples via the upper half block.
// Signed fields are scaled symmetrically about zero.
func Heatmap(rows [][]float64, cols, lines int, th Theme, signed bool) string {
	if len(rows) == 0 || len(rows[0]) == 0 || cols <= 0 || lines <= 0 {
		return ""
	}
	scale := newScale(rows, signed)
	ny, nx := len(rows), len(rows[0])
	sample := func(x, py int) float64 {
		i := min(x*nx/cols, nx-1)
		j := ny - 1 - min(py*ny/(2*lines), ny-1)
		return rows[j][i]
	}

	var b strings.Builder
	for l := 0; l < lines; l++ {
		if l > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			top := th.Color(scale.at(sample(x, 2*l)))
			bottom := th.Color(scale.at(sample(x, 2*l+1)))
			b.WriteString(lipgloss.NewStyle().Foreground(top).Background(bottom).Render("▀"))
		}
	}
	return b.String()
}

type fieldScale struct {
	lo, hi float64
	signed bool
}

func newScale(rows [][]float64, signed bool) fieldScale {
	s := fieldScale{lo: math.Inf(1), hi: math.Inf(-1), signed: signed}
	for _, r := range rows {
		for _, v := range r {
			s.lo, s.hi = math.Min(s.lo, v), math.Max(s.hi, v)
		}
	}
	if signed {
		m := math.Max(math.Abs(s.lo), math.Abs(s.hi))
		s.lo, s.hi = -m, m
	}
	return s
}

// at maps v to [0, 1]. Flat fields map to the middle of the palette.
func (s fieldScale) at(v float64) float64 {
	if s.hi <= s.lo {
		return 0.5
	}
	return (v - s.lo) / (s.hi - s.lo)
}

// Normalizer returns the map of field values onto [0, 1] that Heatmap uses.
func Normalizer(rows [][]float64, signed bool) func(float64) float64 {
	return newScale(rows, signed).at
}

// Arrows draws the velocity (u, v) on a cols x lines Braille canvas, one
// arrow per stride cells, scaled so the fastest arrow spans one stride.
func Arrows(u, v [][]float64, cols, lines, stride int) string {
	c := NewCanvas(cols, lines)
	ny, nx := len(u), len(u[0])
	if stride < 1 {
		stride = 1
	}
	peak := 0.0
	for j := range u {
		for i := range u[j] {
			peak = math.Max(peak, math.Hypot(u[j][i], v[j][i]))
		}
	}
	if peak == 0 {
		return c.String()
	}
	sx, sy := float64(2*cols)/float64(nx), float64(4*lines)/float64(ny)
	length := float64(stride) * math.Min(sx, sy) / peak
	for j := stride / 2; j < ny; j += stride {
		for i := stride / 2; i < nx; i += stride {
			x := int((float64(i) + 0.5) * sx)
			y := int((float64(ny-1-j) + 0.5) * sy)
			c.Arrow(x, y, u[j][i]*length, -v[j][i]*length)
		}
	}
	return c.String()
}
