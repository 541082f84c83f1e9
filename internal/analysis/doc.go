// Package analysis post-processes flow solutions and run histories.
//
//   - [CellFields]: cell-centered velocity, speed and vorticity
//   - [EnergySpectrum]: shell-averaged spectrum of a periodic 2D field
//   - [PowerSpectrum] and [DominantFrequency]: spectra of a sampled series
//   - [DecayRate] and [ObservedOrder]: log-linear fits
//
// # Temporal order
//
// Running the same flow at several step sizes against a fine reference
// gives the observed order of a method:
//
//	p, err := analysis.ObservedOrder(dts, errs)
package analysis
