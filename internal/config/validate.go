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

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidFrequency indicates a frequency string could not be parsed.
	ErrInvalidFrequency = errors.New("invalid frequency string provided")
	// ErrNoStationsConfigured indicates no station frequency was configured.
	ErrNoStationsConfigured = errors.New("no station frequencies configured")
	// ErrTooManyStations indicates more than the maximum of 4 stations were configured.
	ErrTooManyStations = errors.New("more than 4 station frequencies configured")
	// ErrStationSpanExceeded indicates the configured stations span more than 2 MHz.
	ErrStationSpanExceeded = errors.New("configured station frequencies span more than 2 MHz")
	// ErrStationOffsetExceeded indicates a station is offset more than 1 MHz from the channelizer center.
	ErrStationOffsetExceeded = errors.New("a configured station is offset more than 1 MHz from the channelizer center")
	// ErrInvalidTunerGain indicates a negative tuner gain was configured.
	ErrInvalidTunerGain = errors.New("invalid tuner gain provided")
	// ErrInvalidTunerSampleRate indicates a non-positive sample rate was configured.
	ErrInvalidTunerSampleRate = errors.New("invalid tuner sample rate provided")
	// ErrInvalidTunerCommand indicates the tuner command was left empty.
	ErrInvalidTunerCommand = errors.New("tuner command must not be empty")
	// ErrInvalidDemodulatorCommand indicates the demodulator command was left empty.
	ErrInvalidDemodulatorCommand = errors.New("demodulator command must not be empty")
	// ErrInvalidMaxRecordingSec indicates a non-positive recording ceiling was configured.
	ErrInvalidMaxRecordingSec = errors.New("invalid max recording seconds provided")
	// ErrInvalidRecordEventType indicates an unrecognized event type in RecordEventTypes.
	ErrInvalidRecordEventType = errors.New("invalid record event type provided, must be traffic or emergency")
	// ErrInvalidOutputDir indicates the recorder output directory was left empty.
	ErrInvalidOutputDir = errors.New("recorder output directory must not be empty")
	// ErrInvalidTranscriptionEngine indicates an unrecognized transcription engine.
	ErrInvalidTranscriptionEngine = errors.New("invalid transcription engine provided")
	// ErrRemoteEndpointRequired indicates the remote transcription endpoint was left empty.
	ErrRemoteEndpointRequired = errors.New("remote transcription endpoint is required when engine is remote")
	// ErrInvalidRemoteTimeout indicates a non-positive remote transcription timeout.
	ErrInvalidRemoteTimeout = errors.New("invalid remote transcription timeout provided")
	// ErrInvalidDatabaseDriver indicates that the provided database driver is not valid.
	ErrInvalidDatabaseDriver = errors.New("invalid database driver provided")
	// ErrInvalidDatabaseHost indicates that the provided database host is not valid.
	ErrInvalidDatabaseHost = errors.New("invalid database host provided")
	// ErrInvalidDatabasePort indicates that the provided database port is not valid.
	ErrInvalidDatabasePort = errors.New("invalid database port provided")
	// ErrInvalidDatabaseName indicates that the provided database name is not valid.
	ErrInvalidDatabaseName = errors.New("invalid database name provided")
	// ErrInvalidRedisHost indicates that the provided Redis host is not valid.
	ErrInvalidRedisHost = errors.New("invalid Redis host provided")
	// ErrInvalidRedisPort indicates that the provided Redis port is not valid.
	ErrInvalidRedisPort = errors.New("invalid Redis port provided")
	// ErrInvalidMQTTBrokerURL indicates that the MQTT broker URL was left empty while enabled.
	ErrInvalidMQTTBrokerURL = errors.New("MQTT broker URL is required when MQTT is enabled")
	// ErrInvalidMQTTQoS indicates an out-of-range MQTT QoS level.
	ErrInvalidMQTTQoS = errors.New("invalid MQTT QoS level provided, must be 0, 1, or 2")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics server bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidWebBindAddress indicates that the provided web server bind address is not valid.
	ErrInvalidWebBindAddress = errors.New("invalid web server bind address provided")
	// ErrInvalidWebPort indicates that the provided web server port is not valid.
	ErrInvalidWebPort = errors.New("invalid web server port provided")
	// ErrInvalidRetentionDays indicates a negative retention horizon was configured.
	ErrInvalidRetentionDays = errors.New("invalid event retention days provided")
	// ErrInvalidPublishMode indicates an unrecognized publish mode.
	ErrInvalidPublishMode = errors.New("invalid publish mode provided, must be essential or all")
	// ErrInvalidStatusInterval indicates a non-positive status broadcast interval.
	ErrInvalidStatusInterval = errors.New("invalid status interval provided")
)

// Validate validates the Tuner configuration, including the station-span
// invariants from the data model (up to 4 stations, span <= 2 MHz, each
// station within 1 MHz of the channelizer center).
func (t Tuner) Validate() error {
	freqs, err := t.StationFrequencies()
	if err != nil {
		return err
	}
	if len(freqs) == 0 {
		return ErrNoStationsConfigured
	}
	if len(freqs) > maxStations {
		return ErrTooManyStations
	}
	if t.CenterFrequency != "" {
		if _, err := ParseFrequency(t.CenterFrequency); err != nil {
			return err
		}
	}
	if t.SampleRate <= 0 {
		return ErrInvalidTunerSampleRate
	}
	if t.Gain < 0 {
		return ErrInvalidTunerGain
	}
	if t.Command == "" {
		return ErrInvalidTunerCommand
	}
	if t.DemodulatorCommand == "" {
		return ErrInvalidDemodulatorCommand
	}

	if len(freqs) > 1 {
		lo, hi := freqs[0], freqs[0]
		for _, f := range freqs[1:] {
			if f < lo {
				lo = f
			}
			if f > hi {
				hi = f
			}
		}
		if hi-lo > maxStationSpanHz {
			return ErrStationSpanExceeded
		}
	}

	for _, s := range t.Stations() {
		if s.Offset > maxStationOffsetHz || s.Offset < -maxStationOffsetHz {
			return ErrStationOffsetExceeded
		}
	}

	return nil
}

// Validate validates the Recorder configuration.
func (r Recorder) Validate() error {
	if r.MaxRecordingSec <= 0 {
		return ErrInvalidMaxRecordingSec
	}
	if r.OutputDir == "" {
		return ErrInvalidOutputDir
	}
	for _, et := range r.RecordEventTypes {
		if et != EventTypeTraffic && et != EventTypeEmergency {
			return ErrInvalidRecordEventType
		}
	}
	return nil
}

// Validate validates the Transcription configuration.
func (tr Transcription) Validate() error {
	switch tr.Engine {
	case TranscriptionEngineLocal, TranscriptionEngineNone:
	case TranscriptionEngineRemote:
		if tr.RemoteEndpoint == "" {
			return ErrRemoteEndpointRequired
		}
		if tr.RemoteTimeoutSec <= 0 {
			return ErrInvalidRemoteTimeout
		}
	default:
		return ErrInvalidTranscriptionEngine
	}
	return nil
}

// Validate validates the Database configuration.
func (d Database) Validate() error {
	if d.Driver != DatabaseDriverSQLite && d.Driver != DatabaseDriverPostgres {
		return ErrInvalidDatabaseDriver
	}
	if d.Driver == DatabaseDriverPostgres && d.Host == "" {
		return ErrInvalidDatabaseHost
	}
	if d.Driver == DatabaseDriverPostgres && (d.Port <= 0 || d.Port > 65535) {
		return ErrInvalidDatabasePort
	}
	if d.Database == "" {
		return ErrInvalidDatabaseName
	}
	return nil
}

// Validate validates the Redis configuration.
func (r Redis) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Host == "" {
		return ErrInvalidRedisHost
	}
	if r.Port <= 0 || r.Port > 65535 {
		return ErrInvalidRedisPort
	}
	return nil
}

// Validate validates the MQTT configuration.
func (m MQTT) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.BrokerURL == "" {
		return ErrInvalidMQTTBrokerURL
	}
	if m.QoS > 2 {
		return ErrInvalidMQTTQoS
	}
	return nil
}

// Validate validates the Metrics configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate validates the Web configuration.
func (w Web) Validate() error {
	if w.Bind == "" {
		return ErrInvalidWebBindAddress
	}
	if w.Port <= 0 || w.Port > 65535 {
		return ErrInvalidWebPort
	}
	return nil
}

// Validate validates the full configuration, returning the first error
// encountered. Use ValidateWithFields to collect every violation at once.
func (c Config) Validate() error {
	if c.LogLevel != LogLevelDebug && c.LogLevel != LogLevelInfo &&
		c.LogLevel != LogLevelWarn && c.LogLevel != LogLevelError {
		return ErrInvalidLogLevel
	}
	if c.PublishMode != PublishModeEssential && c.PublishMode != PublishModeAll {
		return ErrInvalidPublishMode
	}
	if c.StatusIntervalSec <= 0 {
		return ErrInvalidStatusInterval
	}
	if c.EventRetentionDays < 0 {
		return ErrInvalidRetentionDays
	}
	if err := c.Tuner.Validate(); err != nil {
		return err
	}
	if err := c.Recorder.Validate(); err != nil {
		return err
	}
	if err := c.Transcription.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Web.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateWithFields runs every section's validation independently and
// returns every violation found, rather than stopping at the first.
func (c Config) ValidateWithFields() []error {
	var errs []error
	checks := []error{
		func() error {
			if c.LogLevel != LogLevelDebug && c.LogLevel != LogLevelInfo &&
				c.LogLevel != LogLevelWarn && c.LogLevel != LogLevelError {
				return ErrInvalidLogLevel
			}
			return nil
		}(),
		func() error {
			if c.PublishMode != PublishModeEssential && c.PublishMode != PublishModeAll {
				return ErrInvalidPublishMode
			}
			return nil
		}(),
		c.Tuner.Validate(),
		c.Recorder.Validate(),
		c.Transcription.Validate(),
		c.Database.Validate(),
		c.Redis.Validate(),
		c.MQTT.Validate(),
		c.Metrics.Validate(),
		c.Web.Validate(),
	}
	for _, err := range checks {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
