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

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	// LogLevelDebug is the debug logging level, providing detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the informational logging level, providing general information.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the warning logging level, indicating potential issues.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the error logging level, indicating serious issues.
	LogLevelError LogLevel = "error"
)

// DatabaseDriver represents the type of database driver backing the event store.
type DatabaseDriver string

const (
	// DatabaseDriverSQLite is the SQLite database driver.
	DatabaseDriverSQLite DatabaseDriver = "sqlite"
	// DatabaseDriverPostgres is the PostgreSQL database driver.
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

// EventType is one of the three station event kinds the rules engine emits.
type EventType string

const (
	// EventTypeTraffic is a traffic announcement event, driven by the TA flag.
	EventTypeTraffic EventType = "traffic"
	// EventTypeEmergency is an emergency event, driven by PTY alarm-set membership.
	EventTypeEmergency EventType = "emergency"
	// EventTypeEONTraffic is a linked-station traffic event carried over EON. It is
	// never recordable and never transitions after creation.
	EventTypeEONTraffic EventType = "eon_traffic"
)

// PublishMode controls which decoded fields reach the broker's alert topic
// versus its per-PI retained topics.
type PublishMode string

const (
	// PublishModeEssential publishes traffic, emergency, and EON-traffic
	// transitions on the alert topic; slowly changing fields are not
	// republished on per-PI topics.
	PublishModeEssential PublishMode = "essential"
	// PublishModeAll additionally republishes retained per-PI topic updates
	// for slowly changing fields (PS, music flag, DI, AF, EON, clock time).
	PublishModeAll PublishMode = "all"
)

// TranscriptionEngine selects the speech-to-text backend.
type TranscriptionEngine string

const (
	// TranscriptionEngineLocal runs the configured local transcription CLI
	// once per job.
	TranscriptionEngineLocal TranscriptionEngine = "local"
	// TranscriptionEngineRemote calls a configured HTTP endpoint.
	TranscriptionEngineRemote TranscriptionEngine = "remote"
	// TranscriptionEngineNone disables transcription entirely.
	TranscriptionEngineNone TranscriptionEngine = "none"
)

// TranscriptionStatus tracks a station event's audio capture through
// transcoding and transcription. A nil *TranscriptionStatus means the
// field is unset (no capture was ever attempted for this event).
type TranscriptionStatus string

const (
	// TranscriptionStatusRecording is set as soon as a traffic/emergency
	// event starts and the recorder begins capturing audio for it.
	TranscriptionStatusRecording TranscriptionStatus = "recording"
	// TranscriptionStatusSaving is set once capture stops and the
	// recorder is transcoding the raw PCM to WAV/Opus.
	TranscriptionStatusSaving TranscriptionStatus = "saving"
	// TranscriptionStatusTranscribing is set once the WAV artifact is on
	// disk and a job has been enqueued with the transcription backend.
	TranscriptionStatusTranscribing TranscriptionStatus = "transcribing"
	// TranscriptionStatusDone is set when the transcription job returns
	// text successfully.
	TranscriptionStatusDone TranscriptionStatus = "done"
	// TranscriptionStatusError is set on any transcoding or transcription
	// failure.
	TranscriptionStatusError TranscriptionStatus = "error"
)
