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

package dsp

import "gonum.org/v1/gonum/dsp/fourier"

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// OverlapSaveFilter applies a real-valued FIR to a stream of complex blocks
// via frequency-domain overlap-save, preserving exact tail continuity across
// blocks. Not safe for concurrent use; one instance per station.
type OverlapSaveFilter struct {
	taps    int
	block   int
	fftSize int

	fft *fourier.CmplxFFT
	h   []complex128 // FFT(zero_pad(impulse response))

	overlap []complex128 // last taps-1 samples of the previous shifted input
	scratch []complex128 // fftSize-length work buffer, reused across calls
}

// NewOverlapSaveFilter precomputes the filter's frequency-domain transfer
// function for a fixed block size. taps must be <= blockSize+1.
func NewOverlapSaveFilter(impulse []float64, blockSize int) *OverlapSaveFilter {
	taps := len(impulse)
	fftSize := nextPow2(blockSize + taps - 1)

	fft := fourier.NewCmplxFFT(fftSize)

	padded := make([]complex128, fftSize)
	for i, v := range impulse {
		padded[i] = complex(v, 0)
	}

	f := &OverlapSaveFilter{
		taps:    taps,
		block:   blockSize,
		fftSize: fftSize,
		fft:     fft,
		h:       fft.Coefficients(nil, padded),
		overlap: make([]complex128, taps-1),
		scratch: make([]complex128, fftSize),
	}
	return f
}

// Process filters one block of length blockSize, returning a new slice of
// the same length. The overlap tail carried into the next call is taken
// from this block's shifted input (zb), not from the filtered output.
func (f *OverlapSaveFilter) Process(zb []complex128) []complex128 {
	for i := range f.scratch {
		f.scratch[i] = 0
	}
	copy(f.scratch, f.overlap)
	copy(f.scratch[len(f.overlap):], zb)

	coeffs := f.fft.Coefficients(nil, f.scratch)
	for i := range coeffs {
		coeffs[i] *= f.h[i]
	}
	y := f.fft.Sequence(f.scratch, coeffs)

	// gonum's Coefficients/Sequence pair is unnormalized: a round trip
	// multiplies by the transform length.
	scale := complex(1/float64(f.fftSize), 0)
	out := make([]complex128, f.block)
	for i := range out {
		out[i] = y[f.taps-1+i] * scale
	}

	if len(zb) >= len(f.overlap) {
		copy(f.overlap, zb[len(zb)-len(f.overlap):])
	} else {
		shift := len(f.overlap) - len(zb)
		copy(f.overlap, f.overlap[len(zb):])
		copy(f.overlap[shift:], zb)
	}

	return out
}
