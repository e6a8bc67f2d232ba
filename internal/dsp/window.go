// SPDX-License-Identifier: AGPL-3.0-or-later
// rds-supervisor - software-defined FM radio supervisor
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package dsp implements the wideband channelizer: a per-station FIR
// low-pass filter applied by overlap-save FFT convolution, a shift/filter/
// decimate/discriminate/quantize pipeline, and the channelizer thread that
// drives all station pipelines from a single IQ byte stream.
package dsp

import "math"

const (
	// NTaps is the FIR filter length.
	NTaps = 127
	// LPFCutoffHz is the low-pass cutoff frequency.
	LPFCutoffHz = 80_000
	// Block is the number of complex IQ samples per channelizer read.
	Block = 16_384
	// SampleRateHz is the wideband IQ input sample rate.
	SampleRateHz = 2_394_000
	// OutputRateHz is the per-station demodulated PCM sample rate.
	OutputRateHz = 171_000
	// Decimation is the integer decimation factor from SampleRateHz to OutputRateHz.
	Decimation = SampleRateHz / OutputRateHz
)

// blackman returns the N_taps-point Blackman window, indexed n = 0..N-1.
func blackman(n, taps int) float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	x := 2 * math.Pi * float64(n) / float64(taps-1)
	return a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
}

// sinc is the normalized sinc function, sinc(0) = 1.
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// LowPassTaps designs a symmetric FIR low-pass filter as a Blackman-windowed
// sinc with the given cutoff, at the given sample rate, normalized so its
// coefficients sum to 1 (unity DC gain).
func LowPassTaps(cutoffHz, sampleRateHz float64, taps int) []float64 {
	fc := cutoffHz / sampleRateHz
	h := make([]float64, taps)
	mid := float64(taps-1) / 2
	var sum float64
	for n := 0; n < taps; n++ {
		h[n] = sinc(2*fc*(float64(n)-mid)) * blackman(n, taps)
		sum += h[n]
	}
	for n := range h {
		h[n] /= sum
	}
	return h
}
