/*
Copyright © 2026 the LagFilter authors.
This file is part of LagFilter.

LagFilter is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LagFilter is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LagFilter.  If not, see <http://www.gnu.org/licenses/>.
*/

package lagfilter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectralFilter removes frequency components outside a configured
// pass range from fixed-length, uniformly sampled series and reads off
// the value at the series center. Identical input always yields
// identical output.
//
// A SpectralFilter owns scratch buffers and an FFT plan, so it is not
// safe for concurrent use; each worker holds its own instance.
type SpectralFilter struct {
	n                 int
	fft               *fourier.FFT
	freqs             []float64 // bin frequencies [cycles/s]
	highpass, lowpass float64
	coeffs            []complex128
	buf               []float64
}

// NewSpectralFilter builds a filter for series of odd length n sampled
// every sampleInterval seconds. Components with frequency below
// highpass [cycles/s] are removed; when highpass is positive this
// includes the mean. Components above lowpass are also removed when
// lowpass is positive. Edge effects inherent to finite-window spectral
// filtering are accepted; the window half-width must be chosen larger
// than the longest period that needs full attenuation.
func NewSpectralFilter(highpass, lowpass, sampleInterval float64, n int) (*SpectralFilter, error) {
	if n < 3 || n%2 == 0 {
		return nil, configErrorf("series length must be odd and at least 3; got %d", n)
	}
	if sampleInterval <= 0 {
		return nil, configErrorf("sample interval must be positive; got %g", sampleInterval)
	}
	f := &SpectralFilter{
		n:        n,
		fft:      fourier.NewFFT(n),
		highpass: highpass,
		lowpass:  lowpass,
		coeffs:   make([]complex128, n/2+1),
		buf:      make([]float64, n),
	}
	f.freqs = make([]float64, n/2+1)
	for i := range f.freqs {
		f.freqs[i] = f.fft.Freq(i) / sampleInterval
	}
	return f, nil
}

// CenterValue filters series with the configured pass range and
// returns the filtered value at its center sample.
func (f *SpectralFilter) CenterValue(series []float64) (float64, error) {
	return f.CenterValueBand(series, f.highpass, f.lowpass)
}

// CenterValueBand is like CenterValue but with the pass range given
// per call, so one filter can serve cutoffs that vary from particle
// to particle. A series containing any non-finite value produces an
// InvalidSeries error rather than propagating non-finite values into
// the transform.
func (f *SpectralFilter) CenterValueBand(series []float64, highpass, lowpass float64) (float64, error) {
	if len(series) != f.n {
		return 0, configErrorf("series length %d does not match filter length %d", len(series), f.n)
	}
	if math.IsNaN(highpass) || math.IsInf(highpass, 0) || highpass < 0 {
		return 0, configErrorf("highpass cutoff must be finite and non-negative; got %g", highpass)
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &ConditionError{
				Condition: InvalidSeries,
				Message:   fmt.Sprintf("non-finite sample at series index %d", i),
			}
		}
	}
	f.fft.Coefficients(f.coeffs, series)
	for i, hz := range f.freqs {
		if hz < highpass || (lowpass > 0 && hz > lowpass) {
			f.coeffs[i] = 0
		}
	}
	f.fft.Sequence(f.buf, f.coeffs)
	// The transform pair is unnormalized: a round trip scales by n.
	return f.buf[f.n/2] / float64(f.n), nil
}

// InertialFrequency returns the magnitude of the local inertial
// (Coriolis) frequency [cycles/s] at the given latitude [degrees].
func InertialFrequency(lat float64) float64 {
	const omega = 7.2921159e-5 // Earth's rotation rate [rad/s]
	return math.Abs(2*omega*math.Sin(lat*math.Pi/180)) / (2 * math.Pi)
}
