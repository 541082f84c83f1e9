package methods

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type entry struct {
	a       [][]float64
	b, c    []float64
	r       float64
	region  Region
	summary string
}

var (
	sqrt3 = math.Sqrt(3)
	sqrt6 = math.Sqrt(6)
	gamma = 1 - 1/math.Sqrt2
	inf   = math.Inf(1)
)

// tableaus lists the named Runge–Kutta methods. Stability extents are those
// of the method's stability polynomial or function.
var tableaus = map[string]entry{
	"FE11": {
		a: [][]float64{{0}}, b: []float64{1}, c: []float64{0}, r: 1,
		region: Region{Real: 2}, summary: "forward Euler",
	},
	"SSP22": {
		a: [][]float64{{0, 0}, {1, 0}}, b: []float64{0.5, 0.5}, c: []float64{0, 1}, r: 2,
		region: Region{Real: 2}, summary: "Heun, strong stability preserving",
	},
	"SSP42": {
		a: [][]float64{
			{0, 0, 0, 0},
			{1.0 / 3, 0, 0, 0},
			{1.0 / 3, 1.0 / 3, 0, 0},
			{1.0 / 3, 1.0 / 3, 1.0 / 3, 0},
		},
		b: []float64{0.25, 0.25, 0.25, 0.25}, c: []float64{0, 1.0 / 3, 2.0 / 3, 1}, r: 2,
		region: Region{Real: 6}, summary: "four-stage second-order SSP",
	},
	"SSP33": {
		a: [][]float64{{0, 0, 0}, {1, 0, 0}, {0.25, 0.25, 0}},
		b: []float64{1.0 / 6, 1.0 / 6, 2.0 / 3}, c: []float64{0, 1, 0.5}, r: 3,
		region: Region{Real: 2.51, Imag: sqrt3}, summary: "Shu–Osher third order",
	},
	"SSP43": {
		a: [][]float64{
			{0, 0, 0, 0},
			{0.5, 0, 0, 0},
			{0.5, 0.5, 0, 0},
			{1.0 / 6, 1.0 / 6, 1.0 / 6, 0},
		},
		b: []float64{1.0 / 6, 1.0 / 6, 1.0 / 6, 0.5}, c: []float64{0, 0.5, 1, 0.5}, r: 3,
		region: Region{Real: 5.14, Imag: 2.6}, summary: "four-stage third-order SSP",
	},
	"Wray3": {
		a: [][]float64{{0, 0, 0}, {8.0 / 15, 0, 0}, {0.25, 5.0 / 12, 0}},
		b: []float64{0.25, 0, 0.75}, c: []float64{0, 8.0 / 15, 2.0 / 3}, r: 3,
		region: Region{Real: 2.51, Imag: sqrt3}, summary: "Wray low-storage third order",
	},
	"RK44": {
		a: [][]float64{
			{0, 0, 0, 0},
			{0.5, 0, 0, 0},
			{0, 0.5, 0, 0},
			{0, 0, 1, 0},
		},
		b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}, c: []float64{0, 0.5, 0.5, 1}, r: 4,
		region: Region{Real: 2.79, Imag: 2 * math.Sqrt2}, summary: "classical fourth order",
	},
	"RK38": {
		a: [][]float64{
			{0, 0, 0, 0},
			{1.0 / 3, 0, 0, 0},
			{-1.0 / 3, 1, 0, 0},
			{1, -1, 1, 0},
		},
		b: []float64{1.0 / 8, 3.0 / 8, 3.0 / 8, 1.0 / 8}, c: []float64{0, 1.0 / 3, 2.0 / 3, 1}, r: 4,
		region: Region{Real: 2.79, Imag: 2 * math.Sqrt2}, summary: "Kutta 3/8 rule",
	},
	"BE11": {
		a: [][]float64{{1}}, b: []float64{1}, c: []float64{1}, r: 1,
		region: Region{Real: inf, Imag: 1}, summary: "backward Euler",
	},
	"GL1": {
		a: [][]float64{{0.5}}, b: []float64{1}, c: []float64{0.5}, r: 2,
		region: Region{Real: inf, Imag: 1}, summary: "implicit midpoint (Gauss–Legendre)",
	},
	"GL2": {
		a: [][]float64{
			{0.25, 0.25 - sqrt3/6},
			{0.25 + sqrt3/6, 0.25},
		},
		b: []float64{0.5, 0.5}, c: []float64{0.5 - sqrt3/6, 0.5 + sqrt3/6}, r: 4,
		region: Region{Real: inf, Imag: 1}, summary: "two-stage Gauss–Legendre",
	},
	"RIA1": {
		a: [][]float64{{1}}, b: []float64{1}, c: []float64{0}, r: 1,
		region: Region{Real: inf, Imag: 1}, summary: "one-stage Radau IA",
	},
	"RIIA2": {
		a: [][]float64{{5.0 / 12, -1.0 / 12}, {0.75, 0.25}},
		b: []float64{0.75, 0.25}, c: []float64{1.0 / 3, 1}, r: 3,
		region: Region{Real: inf, Imag: 1}, summary: "two-stage Radau IIA",
	},
	"RIIA3": {
		a: [][]float64{
			{(88 - 7*sqrt6) / 360, (296 - 169*sqrt6) / 1800, (-2 + 3*sqrt6) / 225},
			{(296 + 169*sqrt6) / 1800, (88 + 7*sqrt6) / 360, (-2 - 3*sqrt6) / 225},
			{(16 - sqrt6) / 36, (16 + sqrt6) / 36, 1.0 / 9},
		},
		b: []float64{(16 - sqrt6) / 36, (16 + sqrt6) / 36, 1.0 / 9},
		c: []float64{(4 - sqrt6) / 10, (4 + sqrt6) / 10, 1}, r: 5,
		region: Region{Real: inf, Imag: 1}, summary: "three-stage Radau IIA",
	},
	"SDIRK2": {
		a: [][]float64{{gamma, 0}, {1 - gamma, gamma}},
		b: []float64{1 - gamma, gamma}, c: []float64{gamma, 1}, r: 2,
		region: Region{Real: inf, Imag: 1}, summary: "L-stable singly diagonally implicit",
	},
}

// Info describes a registered method for listings.
type Info struct {
	Name      string
	Kind      string
	Stages    int
	Order     float64
	Summary   string
	Multistep bool
}

// Lookup builds the named method. Implicit Runge–Kutta methods use the
// given Newton settings; ABCN and OneLeg use their default coefficients.
func Lookup(name string, n Newton) (Method, error) {
	switch name {
	case "ABCN":
		return DefaultABCN(), nil
	case "OneLeg":
		return NewOneLeg(0.5)
	}
	e, ok := tableaus[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	t, err := newTableau(name, e.a, e.b, e.c, e.r)
	if err != nil {
		return nil, err
	}
	t.region = e.region
	if isExplicit(t.A) {
		return &ExplicitRK{tableau: *t}, nil
	}
	return newImplicit(t, n)
}

// List returns every registered method sorted by name.
func List() []Info {
	out := make([]Info, 0, len(tableaus)+2)
	for name, e := range tableaus {
		kind := "implicit"
		if isExplicit(mustDense(e.a)) {
			kind = "explicit"
		}
		out = append(out, Info{Name: name, Kind: kind, Stages: len(e.b), Order: e.r, Summary: e.summary})
	}
	out = append(out,
		Info{Name: "ABCN", Kind: "imex", Stages: 1, Order: 2, Summary: "Adams–Bashforth / Crank–Nicolson", Multistep: true},
		Info{Name: "OneLeg", Kind: "one-leg", Stages: 1, Order: 2, Summary: "one-leg β = 1/2", Multistep: true},
	)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func mustDense(a [][]float64) *mat.Dense {
	s := len(a)
	m := mat.NewDense(s, s, nil)
	for i, row := range a {
		m.SetRow(i, row)
	}
	return m
}
