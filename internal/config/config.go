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

// Config stores the application configuration.
type Config struct {
	LogLevel LogLevel `yaml:"log_level" default:"info"`

	Tuner         Tuner         `yaml:"tuner"`
	Recorder      Recorder      `yaml:"recorder"`
	Transcription Transcription `yaml:"transcription"`
	Database      Database      `yaml:"database"`
	Redis         Redis         `yaml:"redis"`
	MQTT          MQTT          `yaml:"mqtt"`
	Metrics       Metrics       `yaml:"metrics"`
	Web           Web           `yaml:"web"`

	// EventRetentionDays is the purge horizon for the event store. Rows (and
	// their audio artifacts) older than this are deleted by the periodic
	// retention job.
	EventRetentionDays int `yaml:"event_retention_days" default:"30"`

	// PublishMode controls how much of the decoded-group stream reaches the
	// broker. "essential" carries only traffic, emergency, and EON-traffic
	// transitions on the alert topic; "all" additionally republishes
	// retained per-PI topic updates for slowly changing fields (PS, music
	// flag, DI, AF, EON, clock time).
	PublishMode PublishMode `yaml:"publish_mode" default:"essential"`

	// StatusIntervalSec is the period of the status-snapshot broadcast.
	StatusIntervalSec int `yaml:"status_interval_sec" default:"10"`
}

// Tuner configures the SDR device and the station set it channelizes.
type Tuner struct {
	// Frequency is the single-station carrier, in the frequency grammar
	// (trailing M = MHz, K = kHz, otherwise Hz, decimals allowed).
	Frequency string `yaml:"frequency" default:"103.5M"`

	// Frequencies is the comma-separated multi-station carrier list, in
	// configuration order (max 4, span <= 2 MHz). When set it overrides
	// Frequency. A single-entry list is the degenerate single-station
	// case: the tuner demodulates directly and the DSP chain is skipped.
	Frequencies string `yaml:"frequencies"`

	// CenterFrequency is the channelizer's tuned center, in the same
	// grammar. Empty means "the midpoint of the configured station span".
	CenterFrequency string `yaml:"center_frequency"`

	// SampleRate is the wideband IQ sample rate, in samples/sec.
	SampleRate float64 `yaml:"sample_rate" default:"2394000"`

	Gain          int `yaml:"gain" default:"8"`
	PPMCorrection int `yaml:"ppm_correction" default:"0"`

	DeviceSerial string `yaml:"device_serial"`
	DeviceIndex  int    `yaml:"device_index" default:"0"`

	// Command and DemodulatorCommand are the external binaries spawned as
	// child processes; their contracts are specified only at the interface
	// (stdout/stderr byte and line streams).
	Command            string   `yaml:"command" default:"rtl_fm"`
	CommandArgs        []string `yaml:"command_args"`
	DemodulatorCommand string   `yaml:"demodulator_command" default:"redsea"`
	DemodulatorArgs    []string `yaml:"demodulator_args"`
	ProbeCommand       string   `yaml:"probe_command" default:"rtl_test"`
}

// Recorder configures per-station audio capture.
type Recorder struct {
	MaxRecordingSec int `yaml:"max_recording_sec" default:"600"`

	// RecordEventTypes is the subset of {traffic, emergency} for which the
	// rules engine is permitted to ask the recorder to capture audio.
	// eon_traffic is never recordable regardless of this setting.
	RecordEventTypes []EventType `yaml:"record_event_types" default:"traffic,emergency"`

	OutputDir string `yaml:"output_dir" default:"./recordings"`

	// ConverterCommand transcodes raw PCM into the WAV/Opus artifact pair.
	ConverterCommand string `yaml:"converter_command" default:"ffmpeg"`
}

// Transcription configures the speech-to-text backend. Like the tuner and
// demodulator, the actual speech-to-text engine is an opaque external
// collaborator: the local engine shells out to a configured CLI transcriber
// rather than linking a model runtime into this process.
type Transcription struct {
	Engine           TranscriptionEngine `yaml:"engine" default:"local"`
	Language         string              `yaml:"language" default:"sv"`
	LocalCommand     string              `yaml:"local_command" default:"whisper-cli"`
	LocalModel       string              `yaml:"local_model" default:"small"`
	LocalModelPath   string              `yaml:"local_model_path"`
	RemoteEndpoint   string              `yaml:"remote_endpoint"`
	RemoteTimeoutSec int                 `yaml:"remote_timeout_sec" default:"120"`
}

// Database configures the durable event store.
type Database struct {
	Driver   DatabaseDriver `yaml:"driver" default:"sqlite"`
	Database string         `yaml:"database" default:"rds-supervisor.db"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	Username string         `yaml:"username"`
	Password string         `yaml:"password"`
}

// Redis configures the optional Redis-backed broker/KV implementation.
type Redis struct {
	Enabled  bool   `yaml:"enabled" default:"false"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" default:"0"`
}

// MQTT configures the home-automation broker client.
type MQTT struct {
	Enabled     bool   `yaml:"enabled" default:"false"`
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id" default:"rds-supervisor"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix" default:"rds-supervisor"`
	QoS         byte   `yaml:"qos" default:"1"`
	RetainState bool   `yaml:"retain_state" default:"true"`
}

// Metrics configures the Prometheus exposition server.
type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Bind    string `yaml:"bind" default:"127.0.0.1"`
	Port    int    `yaml:"port" default:"9090"`
}

// Web configures the thin HTTP/websocket surface: a single endpoint that
// fans out broker topics to connected peers.
type Web struct {
	Bind string `yaml:"bind" default:"0.0.0.0"`
	Port int    `yaml:"port" default:"8080"`
}
