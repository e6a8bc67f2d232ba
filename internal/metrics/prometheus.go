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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the process-wide Prometheus registry wrapper. One instance is
// constructed at startup and threaded into the channelizer, rules engine,
// recorder, and transcription queue rather than reached for as a global.
type Metrics struct {
	// Channelizer metrics
	ChannelizerBlocksTotal  *prometheus.CounterVec
	ChannelizerDroppedTotal *prometheus.CounterVec
	DSPProcessingDuration   *prometheus.HistogramVec

	// Rules engine metrics
	RulesTransitionsTotal *prometheus.CounterVec

	// Recorder metrics
	RecorderCapturesTotal *prometheus.CounterVec

	// Transcription metrics
	TranscriptionJobDuration *prometheus.HistogramVec
	TranscriptionJobsTotal   *prometheus.CounterVec

	// Event store metrics
	StoreWriteDuration prometheus.Histogram
	StoreWriteErrors   prometheus.Counter
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		ChannelizerBlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channelizer_blocks_total",
			Help: "The total number of IQ blocks processed per station",
		}, []string{"station"}),
		ChannelizerDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channelizer_blocks_dropped_total",
			Help: "The total number of short-read blocks discarded per station",
		}, []string{"station"}),
		DSPProcessingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsp_processing_duration_seconds",
			Help:    "Duration of the per-station DSP pipeline pass",
			Buckets: prometheus.DefBuckets,
		}, []string{"station"}),
		RulesTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rules_transitions_total",
			Help: "The total number of rules-engine transitions by event type and outcome",
		}, []string{"type", "outcome"}),
		RecorderCapturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_captures_total",
			Help: "The total number of recorder captures by outcome (started, finalized, discarded)",
		}, []string{"outcome"}),
		TranscriptionJobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcription_job_duration_seconds",
			Help:    "Wall-clock duration of a transcription job",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		TranscriptionJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transcription_jobs_total",
			Help: "The total number of transcription jobs by outcome",
		}, []string{"outcome"}),
		StoreWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "event_store_write_duration_seconds",
			Help:    "Duration of event store write operations",
			Buckets: prometheus.DefBuckets,
		}),
		StoreWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_store_write_errors_total",
			Help: "The total number of event store write failures",
		}),
	}
	metrics.register()
	return metrics
}

func (m *Metrics) register() {
	prometheus.MustRegister(m.ChannelizerBlocksTotal)
	prometheus.MustRegister(m.ChannelizerDroppedTotal)
	prometheus.MustRegister(m.DSPProcessingDuration)
	prometheus.MustRegister(m.RulesTransitionsTotal)
	prometheus.MustRegister(m.RecorderCapturesTotal)
	prometheus.MustRegister(m.TranscriptionJobDuration)
	prometheus.MustRegister(m.TranscriptionJobsTotal)
	prometheus.MustRegister(m.StoreWriteDuration)
	prometheus.MustRegister(m.StoreWriteErrors)
}

func (m *Metrics) RecordChannelizerBlock(station string) {
	m.ChannelizerBlocksTotal.WithLabelValues(station).Inc()
}

func (m *Metrics) RecordChannelizerDrop(station string) {
	m.ChannelizerDroppedTotal.WithLabelValues(station).Inc()
}

func (m *Metrics) RecordDSPDuration(station string, seconds float64) {
	m.DSPProcessingDuration.WithLabelValues(station).Observe(seconds)
}

func (m *Metrics) RecordRulesTransition(eventType, outcome string) {
	m.RulesTransitionsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordRecorderCapture(outcome string) {
	m.RecorderCapturesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTranscriptionJob(outcome string, seconds float64) {
	m.TranscriptionJobDuration.WithLabelValues(outcome).Observe(seconds)
	m.TranscriptionJobsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStoreWrite(seconds float64, err error) {
	m.StoreWriteDuration.Observe(seconds)
	if err != nil {
		m.StoreWriteErrors.Inc()
	}
}
