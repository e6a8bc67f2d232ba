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

// Package store is the durable, append-with-updates event log: one row per
// traffic/emergency/EON-traffic transition, keyed by a strictly increasing
// id, with additive-column schema migration and a retention purge.
package store

import (
	"encoding/json"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/config"
)

// State is one of a station event's lifecycle states.
type State string

const (
	StateStart    State = "start"
	StateUpdate   State = "update"
	StateActive   State = "active"
	StateEnd      State = "end"
	StateReceived State = "received"
)

// Severity is a station event's urgency classification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// RadiotextList is the ordered sequence of distinct consecutive RadioText
// strings for an event, stored as a JSON array column. The rules engine
// never appends an entry equal to the last one.
type RadiotextList []string

// StationEvent is the durable record for one traffic, emergency, or
// eon_traffic transition. Field names and semantics follow the data model
// verbatim; gorm persists it with additive-column migration via Migrate.
type StationEvent struct {
	ID                       int64                       `gorm:"primarykey;autoIncrement"`
	Type                     config.EventType            `gorm:"index;not null"`
	Severity                 Severity                    `gorm:"not null"`
	State                    State                       `gorm:"index;not null"`
	PI                       string                      `gorm:"index;not null"`
	StationPS                string                      `gorm:""`
	Frequency                string                      `gorm:""`
	Radiotext                RadiotextList               `gorm:"serializer:json"`
	Data                     json.RawMessage             `gorm:"type:text;serializer:json"`
	StartedAt                string                      `gorm:"not null"`
	EndedAt                  *string                     `gorm:""`
	DurationSec              int                         `gorm:"not null;default:0"`
	AudioPath                *string                     `gorm:""`
	Transcription            *string                     `gorm:""`
	TranscriptionStatus      *config.TranscriptionStatus `gorm:""`
	TranscriptionDurationSec *float64                    `gorm:""`
	CreatedAt                time.Time                   `gorm:"index;autoCreateTime"`
}

// TableName pins the table name so it survives struct renames.
func (StationEvent) TableName() string { return "station_events" }

// IsTerminal reports whether the event's state is a final state; "end"
// and "received" events never transition further.
func (e StationEvent) IsTerminal() bool {
	return e.State == StateEnd || e.State == StateReceived
}
