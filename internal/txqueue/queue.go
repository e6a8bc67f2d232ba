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

// Package txqueue is the transcription job queue: a single worker draining
// a FIFO of (audio path, event id, callback) jobs, invoking whichever
// speech-to-text backend is configured, and reporting completion without
// ever retrying a failed job.
package txqueue

import (
	"context"
	"sync"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/metrics"
)

// Callback reports the outcome of a transcription job. Exactly one of text
// or err is set; durationSec is the wall-clock time the backend call took.
type Callback func(eventID int64, text string, err error, durationSec float64)

type job struct {
	audioPath string
	eventID   int64
	callback  Callback
}

// Queue is a single-worker FIFO. It is safe for concurrent Enqueue calls
// from multiple recorder goroutines.
type Queue struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     []job
	draining bool

	backendOnce sync.Once
	backend     Backend
	backendErr  error

	wg sync.WaitGroup
}

// NewQueue builds a queue for the configured transcription engine. The
// backend is not constructed or validated until the first job runs, so a
// process that records nothing never builds one.
func NewQueue(cfg *config.Config, m *metrics.Metrics) *Queue {
	q := &Queue{cfg: cfg, metrics: m}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker goroutine. Safe to call once.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Enqueue never blocks; it appends to the in-memory FIFO and wakes the
// worker. If the engine is "none", the callback fires immediately with a
// disabled-transcription error rather than queuing dead work.
func (q *Queue) Enqueue(audioPath string, eventID int64, callback Callback) {
	if q.cfg.Transcription.Engine == config.TranscriptionEngineNone {
		callback(eventID, "", errTranscriptionDisabled, 0)
		return
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job{audioPath: audioPath, eventID: eventID, callback: callback})
	q.mu.Unlock()
	q.cond.Signal()
}

// Shutdown signals the worker to stop after its current job. Queued jobs
// that never started are discarded; transcription is never guaranteed to
// complete before process exit.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.draining = true
	q.jobs = nil
	q.mu.Unlock()
	q.cond.Signal()
	q.wg.Wait()
}

// Depth reports the number of jobs waiting in the FIFO, not counting one
// currently in flight. Used by internal/status for its periodic snapshot.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		j, ok := q.dequeue()
		if !ok {
			return
		}
		q.process(j)
	}
}

func (q *Queue) dequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.draining {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

func (q *Queue) process(j job) {
	backend, err := q.loadBackend()
	if err != nil {
		j.callback(j.eventID, "", err, 0)
		q.recordOutcome("error", 0)
		return
	}

	ctx := context.Background()
	if timeout := q.backendTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := backend.Transcribe(ctx, j.audioPath)
	duration := time.Since(start).Seconds()

	if err != nil {
		logging.Errorf("transcription failed for event %d: %v", j.eventID, err)
		j.callback(j.eventID, "", err, duration)
		q.recordOutcome("error", duration)
		return
	}

	logging.Logf("transcription complete for event %d (%d chars, %.1fs)", j.eventID, len(text), duration)
	j.callback(j.eventID, text, nil, duration)
	q.recordOutcome("success", duration)
}

func (q *Queue) recordOutcome(outcome string, duration float64) {
	if q.metrics != nil {
		q.metrics.RecordTranscriptionJob(outcome, duration)
	}
}

func (q *Queue) backendTimeout() time.Duration {
	if q.cfg.Transcription.Engine == config.TranscriptionEngineRemote {
		return time.Duration(q.cfg.Transcription.RemoteTimeoutSec) * time.Second
	}
	return 0 // local backend runs synchronously to completion, no external timeout imposed
}

func (q *Queue) loadBackend() (Backend, error) {
	q.backendOnce.Do(func() {
		q.backend, q.backendErr = makeBackend(q.cfg.Transcription)
	})
	return q.backend, q.backendErr
}
