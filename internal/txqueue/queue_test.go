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

package txqueue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/txqueue"
)

func TestEnqueueWithNoneEngineCallsBackImmediately(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Transcription: config.Transcription{Engine: config.TranscriptionEngineNone}}
	q := txqueue.NewQueue(cfg, nil)
	q.Start()
	defer q.Shutdown()

	done := make(chan struct{})
	q.Enqueue("/tmp/x.wav", 1, func(eventID int64, text string, err error, durationSec float64) {
		if err == nil {
			t.Error("expected an error when transcription is disabled")
		}
		if text != "" {
			t.Errorf("expected empty text, got %q", text)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestEnqueueLocalBackendMissingCommandReportsError(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Transcription: config.Transcription{
		Engine:       config.TranscriptionEngineLocal,
		LocalCommand: "definitely-not-a-real-binary-xyz",
		Language:     "sv",
		LocalModel:   "small",
	}}
	q := txqueue.NewQueue(cfg, nil)
	q.Start()
	defer q.Shutdown()

	done := make(chan struct{})
	q.Enqueue("/tmp/x.wav", 42, func(eventID int64, text string, err error, durationSec float64) {
		if eventID != 42 {
			t.Errorf("expected event id 42, got %d", eventID)
		}
		if err == nil {
			t.Error("expected an error for a missing local transcription binary")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestEnqueueRemoteWithoutEndpointReportsError(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Transcription: config.Transcription{
		Engine: config.TranscriptionEngineRemote,
	}}
	q := txqueue.NewQueue(cfg, nil)
	q.Start()
	defer q.Shutdown()

	done := make(chan struct{})
	q.Enqueue("/tmp/x.wav", 7, func(eventID int64, text string, err error, durationSec float64) {
		if err == nil {
			t.Error("expected an error when no remote endpoint is configured")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestQueueProcessesJobsInOrder(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Transcription: config.Transcription{Engine: config.TranscriptionEngineNone}}
	q := txqueue.NewQueue(cfg, nil)
	q.Start()
	defer q.Shutdown()

	var mu sync.Mutex
	var order []int64
	var wg sync.WaitGroup
	wg.Add(3)

	for _, id := range []int64{1, 2, 3} {
		id := id
		q.Enqueue("/tmp/x.wav", id, func(eventID int64, text string, err error, durationSec float64) {
			mu.Lock()
			order = append(order, eventID)
			mu.Unlock()
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(order))
	}
	for i, id := range order {
		if id != int64(i+1) {
			t.Fatalf("expected callbacks in enqueue order [1 2 3], got %v", order)
		}
	}
}

func TestShutdownReturnsAfterImmediateNoneEngineCallbacks(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Transcription: config.Transcription{Engine: config.TranscriptionEngineNone}}
	q := txqueue.NewQueue(cfg, nil)
	q.Start()

	var called int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		q.Enqueue("/tmp/x.wav", int64(i), func(eventID int64, text string, err error, durationSec float64) {
			mu.Lock()
			called++
			mu.Unlock()
		})
	}

	q.Shutdown()

	// "none" engine jobs are answered synchronously on Enqueue rather than
	// queued, so Shutdown discarding the backlog has nothing to race here;
	// this just confirms Shutdown returns promptly without deadlocking.
	mu.Lock()
	defer mu.Unlock()
	if called != 5 {
		t.Fatalf("expected all 5 immediate none-engine callbacks to have run, got %d", called)
	}
}
