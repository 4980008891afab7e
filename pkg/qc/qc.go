// Package qc measures how a processed volume differs from its input.
package qc

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"seismicslicer/internal/models"
)

// Metrics compares a processed volume against its reference
type Metrics struct {
	// RMSE is the root mean square difference
	RMSE float64 `yaml:"rmse"`

	// Correlation is the Pearson correlation; zero when either volume is
	// constant
	Correlation float64 `yaml:"correlation"`

	// SNR is 10*log10 of reference energy over difference energy, +Inf for
	// identical volumes
	SNR float64 `yaml:"snrDb"`

	// RemovedEnergy is the difference energy as a fraction of the
	// reference energy
	RemovedEnergy float64 `yaml:"removedEnergy"`

	// Gain is the least-squares scale g minimising |result - g*reference|
	Gain float64 `yaml:"gain"`

	Samples int `yaml:"samples"`
}

// Compare computes the metrics between reference and result, which must
// share a shape
func Compare(reference, result *models.Volume) (*Metrics, error) {
	if reference.Shape != result.Shape || len(reference.Data) != len(result.Data) {
		return nil, &models.ConfigError{
			Field:  "qc",
			Reason: fmt.Sprintf("shape %s does not match %s", result.Shape, reference.Shape),
		}
	}
	ref, res := reference.Data, result.Data
	n := len(ref)

	diff := make([]float64, n)
	floats.SubTo(diff, res, ref)
	diffEnergy := floats.Dot(diff, diff)
	refEnergy := floats.Dot(ref, ref)

	m := &Metrics{Samples: n, RMSE: math.Sqrt(diffEnergy / float64(n))}

	switch {
	case diffEnergy == 0:
		m.SNR = math.Inf(1)
	case refEnergy == 0:
		m.SNR = math.Inf(-1)
	default:
		m.SNR = 10 * math.Log10(refEnergy/diffEnergy)
	}
	if refEnergy > 0 {
		m.RemovedEnergy = diffEnergy / refEnergy
	}

	if stat.Variance(ref, nil) > 0 && stat.Variance(res, nil) > 0 {
		m.Correlation = stat.Correlation(ref, res, nil)
	}

	gain, err := leastSquaresGain(ref, res)
	if err != nil {
		return nil, err
	}
	m.Gain = gain
	return m, nil
}

// leastSquaresGain solves the one-column system ref*g = res
func leastSquaresGain(ref, res []float64) (float64, error) {
	if floats.Norm(ref, 2) == 0 {
		return 0, nil
	}
	a := mat.NewDense(len(ref), 1, ref)
	b := mat.NewVecDense(len(res), res)

	var g mat.VecDense
	if err := g.SolveVec(a, b); err != nil {
		return 0, fmt.Errorf("solving for gain: %w", err)
	}
	return g.AtVec(0), nil
}

// Spectrum is the average amplitude spectrum of the traces of a volume
type Spectrum struct {
	// Frequencies in Hz when the volume carries a sample rate, otherwise in
	// cycles per sample
	Frequencies []float64

	// Amplitude is the mean |FFT| over all traces
	Amplitude []float64
}

// AverageSpectrum zero-pads every trace to the next power of two and
// averages the amplitude of the non-negative frequency bins
func AverageSpectrum(v *models.Volume) (*Spectrum, error) {
	nfft := 2
	for nfft < v.N3 {
		nfft <<= 1
	}
	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return nil, fmt.Errorf("spectrum fft plan: %w", err)
	}

	bins := nfft/2 + 1
	buf := make([]complex128, nfft)
	re := make([]float64, bins)
	im := make([]float64, bins)
	mag := make([]float64, bins)
	sum := make([]float64, bins)

	for i1 := 0; i1 < v.N1; i1++ {
		for i2 := 0; i2 < v.N2; i2++ {
			trace := v.Trace(i1, i2)
			for k := range buf {
				buf[k] = 0
				if k < len(trace) {
					buf[k] = complex(trace[k], 0)
				}
			}
			if err := plan.Forward(buf, buf); err != nil {
				return nil, fmt.Errorf("spectrum fft: %w", err)
			}
			for k := 0; k < bins; k++ {
				re[k], im[k] = real(buf[k]), imag(buf[k])
			}
			vecmath.Magnitude(mag, re, im)
			vecmath.AddBlockInPlace(sum, mag)
		}
	}

	traces := float64(v.N1 * v.N2)
	amp := make([]float64, bins)
	vecmath.ScaleBlock(amp, sum, 1/traces)

	step := 1 / float64(nfft)
	if v.Geometry != nil && v.Geometry.SampleRate > 0 {
		step /= v.Geometry.SampleRate
	}
	freqs := make([]float64, bins)
	floats.Span(freqs, 0, step*float64(bins-1))

	return &Spectrum{Frequencies: freqs, Amplitude: amp}, nil
}

// Peak returns the frequency of the strongest bin
func (s *Spectrum) Peak() float64 {
	return s.Frequencies[floats.MaxIdx(s.Amplitude)]
}
