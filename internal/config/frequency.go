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

package config

import (
	"strconv"
	"strings"
)

const (
	maxStationSpanHz   = 2_000_000
	maxStationOffsetHz = 1_000_000
	maxStations        = 4
)

// ParseFrequency converts a frequency string such as "103.5M" or "97700K" or
// a raw Hz value into Hz. A trailing "M" multiplies by 1e6, "K" by 1e3;
// otherwise the string is parsed as a (possibly decimal) Hz value.
func ParseFrequency(s string) (float64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasSuffix(trimmed, "M"):
		v, err := strconv.ParseFloat(trimmed[:len(trimmed)-1], 64)
		if err != nil {
			return 0, ErrInvalidFrequency
		}
		return v * 1_000_000, nil
	case strings.HasSuffix(trimmed, "K"):
		v, err := strconv.ParseFloat(trimmed[:len(trimmed)-1], 64)
		if err != nil {
			return 0, ErrInvalidFrequency
		}
		return v * 1_000, nil
	default:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, ErrInvalidFrequency
		}
		return v, nil
	}
}

// FormatFrequency renders a Hz value the way the configuration table
// documents it, e.g. 103500000 -> "103.5M".
func FormatFrequency(hz float64) string {
	mhz := hz / 1_000_000
	s := strconv.FormatFloat(mhz, 'f', -1, 64)
	return s + "M"
}

// StationFrequencies resolves the configured carrier list in configuration
// order: the comma-separated Frequencies list when set, otherwise the single
// Frequency.
func (t Tuner) StationFrequencies() ([]float64, error) {
	raw := t.Frequency
	if strings.TrimSpace(t.Frequencies) != "" {
		raw = t.Frequencies
	}
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hz, err := ParseFrequency(part)
		if err != nil {
			return nil, err
		}
		out = append(out, hz)
	}
	return out, nil
}

// resolveCenter derives the channelizer center frequency when it was not
// explicitly configured: the midpoint of the configured station span.
func (t Tuner) resolveCenter(freqs []float64) float64 {
	if t.CenterFrequency != "" {
		if hz, err := ParseFrequency(t.CenterFrequency); err == nil {
			return hz
		}
	}
	if len(freqs) == 0 {
		return 0
	}
	lo, hi := freqs[0], freqs[0]
	for _, f := range freqs[1:] {
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	return lo + (hi-lo)/2
}

// StationOffset is a resolved station with its offset from the channelizer
// center, in Hz.
type StationOffset struct {
	Frequency float64
	Offset    float64
}

// Stations resolves the configured frequency list against the (possibly
// derived) center frequency, producing per-station offsets in configuration
// order. It does not validate; call Tuner.Validate first. Unparseable
// configuration yields an empty slice (Validate reports the actual error).
func (t Tuner) Stations() []StationOffset {
	freqs, err := t.StationFrequencies()
	if err != nil {
		return nil
	}
	center := t.resolveCenter(freqs)
	out := make([]StationOffset, len(freqs))
	for i, f := range freqs {
		out[i] = StationOffset{Frequency: f, Offset: f - center}
	}
	return out
}
