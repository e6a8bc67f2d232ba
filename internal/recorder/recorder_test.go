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

package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/txqueue"
)

type fakeStore struct {
	mu         sync.Mutex
	audioPaths map[int64]string
	statuses   map[int64]*config.TranscriptionStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		audioPaths: make(map[int64]string),
		statuses:   make(map[int64]*config.TranscriptionStatus),
	}
}

func (f *fakeStore) UpdateAudio(eventID int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioPaths[eventID] = path
	return nil
}

func (f *fakeStore) UpdateTranscriptionStatus(eventID int64, status *config.TranscriptionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[eventID] = status
	return nil
}

func (f *fakeStore) status(eventID int64) *config.TranscriptionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[eventID]
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []int64
}

func (q *fakeQueue) Enqueue(audioPath string, eventID int64, callback txqueue.Callback) {
	q.mu.Lock()
	q.enqueued = append(q.enqueued, eventID)
	q.mu.Unlock()
}

func newTestRecorder(store *fakeStore, queue *fakeQueue, enabled bool) *Recorder {
	cfg := config.Recorder{
		MaxRecordingSec:  600,
		OutputDir:        "/tmp/rds-supervisor-test",
		ConverterCommand: "ffmpeg",
	}
	r := New("test", cfg, enabled, store, queue, nil, nil)
	r.transcode = func(converter string, raw []byte, outPath string, opus bool) error {
		return nil
	}
	return r
}

func TestRecorderDiscardsUnderMinimumDuration(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	r := newTestRecorder(store, queue, true)

	r.Start(1)
	r.Feed([]byte{0x01, 0x02})
	// Backdate the start time so Stop() sees an elapsed duration under the
	// 10s minimum without a real sleep.
	r.mu.Lock()
	r.startedAt = time.Now().Add(-2 * time.Second)
	r.mu.Unlock()

	accepted := r.Stop()

	assert.False(t, accepted)
	assert.False(t, r.IsRecording())
	assert.Empty(t, queue.enqueued)
}

func TestRecorderAcceptsAndEnqueuesLongEnoughCapture(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	r := newTestRecorder(store, queue, true)

	r.Start(42)
	r.Feed(make([]byte, 1024))
	r.mu.Lock()
	r.startedAt = time.Now().Add(-15 * time.Second)
	r.mu.Unlock()

	accepted := r.Stop()
	require.True(t, accepted)

	require.Eventually(t, func() bool {
		return len(queue.enqueued) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(42), queue.enqueued[0])
	require.Eventually(t, func() bool {
		status := store.status(42)
		return status != nil && *status == config.TranscriptionStatusTranscribing
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderSkipsQueueWhenTranscriptionDisabled(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	r := newTestRecorder(store, queue, false)

	r.Start(7)
	r.Feed(make([]byte, 1024))
	r.mu.Lock()
	r.startedAt = time.Now().Add(-15 * time.Second)
	r.mu.Unlock()

	require.True(t, r.Stop())

	require.Eventually(t, func() bool {
		status := store.status(7)
		return status == nil && store.audioPaths[7] != ""
	}, time.Second, 10*time.Millisecond)

	assert.Empty(t, queue.enqueued)
}

func TestRecorderStartForcesFinalizeOfPriorCapture(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	r := newTestRecorder(store, queue, true)

	r.Start(1)
	r.Feed(make([]byte, 1024))
	r.mu.Lock()
	r.startedAt = time.Now().Add(-15 * time.Second)
	r.mu.Unlock()

	// Starting a new capture while one is active must finalize the first.
	r.Start(2)

	assert.True(t, r.IsRecording())
	require.Eventually(t, func() bool {
		return len(queue.enqueued) == 1 && queue.enqueued[0] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderFeedEnforcesMaxDuration(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	r := newTestRecorder(store, queue, true)
	r.maxDurSec = 1

	r.Start(9)
	r.mu.Lock()
	r.startedAt = time.Now().Add(-2 * time.Second)
	r.mu.Unlock()

	r.Feed(make([]byte, 10))

	assert.False(t, r.IsRecording(), "exceeding max duration must finalize the capture")
}

func TestRecorderFeedNoopWhenNotRecording(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	r := newTestRecorder(store, queue, true)

	r.Feed([]byte{0x01})
	assert.False(t, r.IsRecording())
}
