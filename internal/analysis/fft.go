package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/san-kum/nsflow/internal/grid"
)

// PowerSpectrum returns |X_k| for k = 0..n/2 of a real series with its mean
// removed.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	seq := make([]float64, n)
	for i, v := range data {
		seq[i] = v - mean
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)
	ps := make([]float64, len(coeffs))
	for i, c := range coeffs {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// DominantFrequency is the frequency of the largest nonzero mode of a
// series sampled every dt.
func DominantFrequency(data []float64, dt float64) float64 {
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return 0
	}
	best := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[best] {
			best = k
		}
	}
	return fourier.NewFFT(len(data)).Freq(best) / dt
}

// EnergySpectrum returns E(k) for integer shells k = 0..max(nx, ny)/2 of a
// velocity on a doubly periodic 2D grid, normalized so that ΣE equals the
// mean kinetic energy per unit area.
func EnergySpectrum(ops *grid.Operators, V []float64) ([]float64, error) {
	if ops.Dim != 2 {
		return nil, fmt.Errorf("%w: energy spectrum needs a 2D grid", grid.ErrBadGrid)
	}
	for a, ax := range ops.Axes {
		if ax.Kind != grid.Periodic {
			return nil, fmt.Errorf("%w: energy spectrum needs periodic axes (axis %d is %s)", grid.ErrBadGrid, a, ax.Kind)
		}
	}
	nx, ny := ops.Axes[0].N, ops.Axes[1].N
	spectrum := make([]float64, max(nx, ny)/2+1)
	cell := make([]float64, ops.Np)
	norm := float64(nx*ny) * float64(nx*ny)

	for a := 0; a < 2; a++ {
		ops.CellVelocity(cell, V, a)
		hat := fft.FFT2Real(Rows([]int{nx, ny}, cell))
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				k := int(math.Round(math.Hypot(float64(wave(i, nx)), float64(wave(j, ny)))))
				if k >= len(spectrum) {
					continue
				}
				c := hat[j][i]
				spectrum[k] += 0.5 * (real(c)*real(c) + imag(c)*imag(c)) / norm
			}
		}
	}
	return spectrum, nil
}

func wave(i, n int) int {
	if i > n/2 {
		return i - n
	}
	return i
}
