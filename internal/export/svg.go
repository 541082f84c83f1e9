package export

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/viz"
)

// FieldSVG renders rows (bottom row first) as a grid of colored cells,
// each cell px pixels wide.
func FieldSVG(rows [][]float64, px int, th viz.Theme, signed bool) string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ""
	}
	if px < 1 {
		px = 1
	}
	ny, nx := len(rows), len(rows[0])
	width, height := nx*px, ny*px
	norm := viz.Normalizer(rows, signed)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">
`, width, height, width, height)
	for j, row := range rows {
		y := (ny - 1 - j) * px
		for i, v := range row {
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>
`, i*px, y, px, px, string(th.Color(norm(v))))
		}
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

// SeriesSVG draws ys against xs as a polyline with 10% padding.
func SeriesSVG(xs, ys []float64, width, height int, strokeColor string) string {
	n := min(len(xs), len(ys))
	if n == 0 {
		return ""
	}
	xs, ys = xs[:n], ys[:n]
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor)

	for i := range xs {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>
`)
	return sb.String()
}
