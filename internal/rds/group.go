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

// Package rds holds the decoded-group model shared by the demodulator
// reader (internal/tuner) and the rules engine: a tolerant, flat parse of
// one demodulator-emitted JSON line.
package rds

import (
	"encoding/json"
	"time"
)

// RTPlusTag is one RadioText Plus tagged span.
type RTPlusTag struct {
	ContentType string `json:"content-type"`
	Data        string `json:"data"`
}

// RTPlus is the decoded RadioText Plus payload for one group.
type RTPlus struct {
	ItemRunning bool        `json:"item_running"`
	Tags        []RTPlusTag `json:"tags"`
}

// OtherNetwork is an EON (group 14A) reference to a linked station.
type OtherNetwork struct {
	PI        string   `json:"pi"`
	PS        string   `json:"ps,omitempty"`
	TP        *bool    `json:"tp,omitempty"`
	TA        *bool    `json:"ta,omitempty"`
	Kilohertz *float64 `json:"kilohertz,omitempty"`
}

// DecodedGroup is the tolerant, flat parse of one demodulator-emitted JSON
// line. Every field but PI is optional: a group carries only the subset of
// information its RDS group type encodes, and unknown JSON keys are
// silently ignored by encoding/json's default Unmarshal behavior.
type DecodedGroup struct {
	PI               *string       `json:"pi"`
	TA               *bool         `json:"ta"`
	TP               *bool         `json:"tp"`
	ProgType         *string       `json:"prog_type"`
	PS               *string       `json:"ps"`
	PartialPS        *string       `json:"partial_ps"`
	LongPS           *string       `json:"long_ps"`
	RadioText        *string       `json:"radiotext"`
	PartialRadioText *string       `json:"partial_radiotext"`
	RadiotextPlus    *RTPlus       `json:"radiotext_plus"`
	OtherNetwork     *OtherNetwork `json:"other_network"`
	ClockTime        *string       `json:"clock_time"`
	Country          *string       `json:"country"`
	Language         *string       `json:"language"`
	DI               *int          `json:"di"`
	IsMusic          *bool         `json:"is_music"`
	BLER             *float64      `json:"bler"`
	AltFrequenciesA  []float64     `json:"alt_frequencies_a"`
	AltFrequenciesB  []float64     `json:"alt_frequencies_b"`
	Timestamp        *string       `json:"timestamp"`
}

const timestampLayout = "2006-01-02T15:04:05"

// ParseGroup decodes one demodulator output line.
func ParseGroup(line []byte) (DecodedGroup, error) {
	var g DecodedGroup
	err := json.Unmarshal(line, &g)
	return g, err
}

// TimestampOrNow returns the group's own timestamp field, or the current
// UTC time formatted the same way if the demodulator did not supply one.
func (g DecodedGroup) TimestampOrNow() string {
	if g.Timestamp != nil && *g.Timestamp != "" {
		return *g.Timestamp
	}
	return time.Now().UTC().Format(timestampLayout)
}
