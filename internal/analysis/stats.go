package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData means too few usable samples for a fit.
var ErrInsufficientData = errors.New("analysis: insufficient data")

type Summary struct {
	Min, Max     float64
	Mean, StdDev float64
	Last         float64
}

func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrInsufficientData
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
		Last:   values[len(values)-1],
	}, nil
}

// DecayRate fits log(y) = a − λ·t and returns λ. Non-positive samples are
// skipped.
func DecayRate(times, values []float64) (float64, error) {
	var x, y []float64
	for i, v := range values {
		if v > 0 {
			x = append(x, times[i])
			y = append(y, math.Log(v))
		}
	}
	if len(x) < 2 {
		return 0, ErrInsufficientData
	}
	_, slope := stat.LinearRegression(x, y, nil, false)
	return -slope, nil
}

// ObservedOrder returns the slope of log(err) against log(dt).
func ObservedOrder(dts, errs []float64) (float64, error) {
	var x, y []float64
	for i, e := range errs {
		if e > 0 && dts[i] > 0 {
			x = append(x, math.Log(dts[i]))
			y = append(y, math.Log(e))
		}
	}
	if len(x) < 2 {
		return 0, ErrInsufficientData
	}
	_, slope := stat.LinearRegression(x, y, nil, false)
	return slope, nil
}
