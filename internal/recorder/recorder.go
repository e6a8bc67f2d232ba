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

// Package recorder captures a station's raw PCM during an active RDS
// event, transcodes it to WAV and Ogg/Opus on stop, and enqueues
// transcription. One instance per station.
package recorder

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/metrics"
	"github.com/tubalainen/rds-supervisor/internal/txqueue"
)

// minDurationSec is the shortest capture that is kept; anything shorter is
// discarded at finalization.
const minDurationSec = 10

// EventStore is the subset of the event store a recorder needs. Satisfied
// by *store.Store.
type EventStore interface {
	UpdateAudio(eventID int64, path string) error
	UpdateTranscriptionStatus(eventID int64, status *config.TranscriptionStatus) error
}

// TranscriptionQueue is the subset of the transcription job queue a
// recorder needs. Satisfied by *txqueue.Queue.
type TranscriptionQueue interface {
	Enqueue(audioPath string, eventID int64, callback txqueue.Callback)
}

// Recorder maintains at most one in-progress capture for a single station.
// start/feed/stop are all mutually exclusive under mu; background
// transcoding after stop runs off-lock.
type Recorder struct {
	label        string
	outputDir    string
	maxDurSec    int
	converterCmd string
	store        EventStore
	queue        TranscriptionQueue
	enabled      bool // transcription configured at all
	callback     txqueue.Callback
	m            *metrics.Metrics

	// transcode is overridable in tests to avoid shelling out to a real
	// converter binary. Defaults to the os/exec-backed implementation.
	transcode func(converter string, raw []byte, outPath string, opus bool) error

	mu        sync.Mutex
	recording bool
	buf       *bytes.Buffer
	eventID   int64
	startedAt time.Time
}

// New builds a station recorder. callback is invoked when a transcription
// job this recorder enqueued completes; it is typically shared across all
// stations and owned by whatever wires the rules engine to the event
// store and publishers.
func New(label string, cfg config.Recorder, transcriptionEnabled bool, store EventStore, queue TranscriptionQueue, callback txqueue.Callback, m *metrics.Metrics) *Recorder {
	return &Recorder{
		label:        label,
		outputDir:    cfg.OutputDir,
		maxDurSec:    cfg.MaxRecordingSec,
		converterCmd: cfg.ConverterCommand,
		store:        store,
		queue:        queue,
		enabled:      transcriptionEnabled,
		callback:     callback,
		m:            m,
		transcode:    defaultTranscode,
	}
}

// IsRecording reports whether a capture is active. Safe to call from the
// tee's goroutine without additional synchronization beyond the mutex.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins a new capture for eventID. Any in-progress capture is
// finalized first (discarding it if it had not yet reached the minimum
// duration).
func (r *Recorder) Start(eventID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		logging.Errorf("recorder[%s]: capture already active for event %d, finalizing before starting event %d", r.label, r.eventID, eventID)
		r.finalizeLocked()
	}
	r.recording = true
	r.buf = &bytes.Buffer{}
	r.eventID = eventID
	r.startedAt = time.Now()
	logging.Logf("recorder[%s]: capture started for event %d", r.label, eventID)
	if r.m != nil {
		r.m.RecordRecorderCapture("started")
	}
}

// Feed appends a PCM chunk to the active capture. A no-op when not
// recording. Enforces the configured maximum duration by finalizing (and
// keeping) the capture once it is exceeded.
func (r *Recorder) Feed(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording || r.buf == nil {
		return
	}
	if r.maxDurSec > 0 && time.Since(r.startedAt) > time.Duration(r.maxDurSec)*time.Second {
		logging.Errorf("recorder[%s]: capture for event %d hit max duration (%ds), finalizing", r.label, r.eventID, r.maxDurSec)
		r.finalizeLocked()
		return
	}
	r.buf.Write(chunk)
}

// Stop ends the active capture, if any, and returns true if the finalized
// capture was long enough to be kept.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return false
	}
	return r.finalizeLocked()
}

// finalizeLocked must be called with mu held. It clears recording state and,
// if the capture is long enough, launches background transcoding.
func (r *Recorder) finalizeLocked() bool {
	r.recording = false
	raw := r.buf.Bytes()
	r.buf = nil
	eventID := r.eventID
	r.eventID = 0
	elapsed := time.Since(r.startedAt)

	if elapsed < minDurationSec*time.Second || len(raw) == 0 {
		logging.Logf("recorder[%s]: capture for event %d too short (%.1fs), discarding", r.label, eventID, elapsed.Seconds())
		if r.m != nil {
			r.m.RecordRecorderCapture("discarded")
		}
		return false
	}

	logging.Logf("recorder[%s]: capture stopped for event %d (%.1fs, %d bytes)", r.label, eventID, elapsed.Seconds(), len(raw))
	if r.m != nil {
		r.m.RecordRecorderCapture("finalized")
	}

	go r.saveAndTranscribe(eventID, raw, elapsed.Seconds())
	return true
}

// saveAndTranscribe transcodes the raw PCM to WAV and Ogg/Opus, records
// the audio path, and enqueues transcription if configured. Runs entirely
// off the recorder's lock.
func (r *Recorder) saveAndTranscribe(eventID int64, raw []byte, durationSec float64) {
	base := fmt.Sprintf("%d", eventID)
	wavPath := filepath.Join(r.outputDir, base+".wav")
	oggPath := filepath.Join(r.outputDir, base+".ogg")

	if err := r.transcode(r.converterCmd, raw, wavPath, false); err != nil {
		r.fail(eventID, "wav", err)
		return
	}
	if err := r.transcode(r.converterCmd, raw, oggPath, true); err != nil {
		r.fail(eventID, "ogg", err)
		return
	}

	if err := r.store.UpdateAudio(eventID, base+".ogg"); err != nil {
		logging.Errorf("recorder[%s]: failed to record audio path for event %d: %v", r.label, eventID, err)
	}
	logging.Logf("recorder[%s]: audio saved for event %d: %s + %s", r.label, eventID, filepath.Base(wavPath), filepath.Base(oggPath))

	if r.enabled {
		transcribing := config.TranscriptionStatusTranscribing
		if err := r.store.UpdateTranscriptionStatus(eventID, &transcribing); err != nil {
			logging.Errorf("recorder[%s]: failed to mark event %d transcribing: %v", r.label, eventID, err)
		}
		r.queue.Enqueue(wavPath, eventID, r.callback)
	} else if err := r.store.UpdateTranscriptionStatus(eventID, nil); err != nil {
		logging.Errorf("recorder[%s]: failed to clear transcription status for event %d: %v", r.label, eventID, err)
	}
}

func (r *Recorder) fail(eventID int64, stage string, err error) {
	logging.Errorf("recorder[%s]: %s transcode failed for event %d: %v", r.label, stage, eventID, err)
	errStatus := config.TranscriptionStatusError
	if serr := r.store.UpdateTranscriptionStatus(eventID, &errStatus); serr != nil {
		logging.Errorf("recorder[%s]: failed to record transcode failure for event %d: %v", r.label, eventID, serr)
	}
}
