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

import (
	"io"
	"math"
)

const (
	pcmScale = 32767.0 / math.Pi
	pcmMin   = -32768
	pcmMax   = 32767
	twoPi    = 2 * math.Pi
)

// StationPipeline is the per-station shift/filter/decimate/discriminate/
// quantize chain described in the data model's "Per-station DSP state".
// Mutated only by the channelizer thread that owns it; not shared.
type StationPipeline struct {
	offsetHz float64
	phase    float64
	phaseInc float64

	filter *OverlapSaveFilter

	prevZ complex128

	sink io.Writer
	dead bool

	// scratch, reused across Process calls to avoid per-block allocation.
	shifted  []complex128
	pcmBytes []byte
}

// NewStationPipeline builds the per-station DSP state for a station offset
// offsetHz Hz from the channelizer center, writing demodulator-ready PCM to
// sink.
func NewStationPipeline(offsetHz float64, sink io.Writer) *StationPipeline {
	taps := LowPassTaps(LPFCutoffHz, SampleRateHz, NTaps)
	return &StationPipeline{
		offsetHz: offsetHz,
		phaseInc: twoPi * offsetHz / SampleRateHz,
		filter:   NewOverlapSaveFilter(taps, Block),
		sink:     sink,
		shifted:  make([]complex128, Block),
	}
}

// Dead reports whether the station's sink has reported a closed-peer
// condition. A dead station continues to be driven (so others are
// unaffected) but its output is silently dropped.
func (p *StationPipeline) Dead() bool {
	return p.dead
}

// Process runs one IQ block of length Block through the full chain and
// writes the resulting signed 16-bit little-endian PCM to the sink. z is
// not retained beyond this call.
func (p *StationPipeline) Process(z []complex128) {
	// 1. Frequency shift.
	phase := p.phase
	for k, s := range z {
		angle := phase + float64(k)*p.phaseInc
		shift := complex(math.Cos(angle), math.Sin(angle))
		p.shifted[k] = s * shift
	}
	p.phase = math.Mod(phase+float64(len(z))*p.phaseInc, twoPi)

	// 2. Band-limit via overlap-save FIR.
	filtered := p.filter.Process(p.shifted)

	// 3. Decimate.
	decimatedLen := len(filtered) / Decimation
	if decimatedLen == 0 {
		return
	}

	// 4. FM discriminate + 5. quantize, fused to avoid an intermediate slice.
	if cap(p.pcmBytes) < decimatedLen*2 {
		p.pcmBytes = make([]byte, decimatedLen*2)
	}
	pcmBytes := p.pcmBytes[:decimatedLen*2]

	prev := p.prevZ
	for i := 0; i < decimatedLen; i++ {
		cur := filtered[i*Decimation]
		product := cur * complex(real(prev), -imag(prev))
		theta := math.Atan2(imag(product), real(product))
		prev = cur

		sample := int32(math.Round(theta * pcmScale))
		if sample < pcmMin {
			sample = pcmMin
		} else if sample > pcmMax {
			sample = pcmMax
		}
		pcmBytes[i*2] = byte(uint16(int16(sample)))
		pcmBytes[i*2+1] = byte(uint16(int16(sample)) >> 8)
	}
	p.prevZ = prev

	// 6. Emit.
	if p.dead {
		return
	}
	if _, err := p.sink.Write(pcmBytes); err != nil {
		p.dead = true
	}
}
