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

package status_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/rules"
	"github.com/tubalainen/rds-supervisor/internal/status"
)

type fakeEngine struct {
	stations  []rules.StationStatus
	traffic   int
	emergency int
}

func (f *fakeEngine) StationStatuses() []rules.StationStatus { return f.stations }
func (f *fakeEngine) ActiveTrafficCount() int                { return f.traffic }
func (f *fakeEngine) ActiveEmergencyCount() int              { return f.emergency }

type fakeQueue struct{ depth int }

func (f *fakeQueue) Depth() int { return f.depth }

type fakeProcs struct{ states map[string]string }

func (f *fakeProcs) States() map[string]string { return f.states }

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(topic string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, message)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakePublisher) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[len(f.payloads)-1]
}

func TestBuildAssemblesSnapshotFromEngineAndQueue(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{
		stations:  []rules.StationStatus{{PI: "C201", PS: "TRAFFIC", ProgType: "Varied"}},
		traffic:   1,
		emergency: 0,
	}
	queue := &fakeQueue{depth: 3}
	procs := &fakeProcs{states: map[string]string{"tuner": "running", "demodulator/103.5M": "running"}}

	snap := status.Build(engine, queue, procs)
	require.Len(t, snap.Stations, 1)
	assert.Equal(t, "C201", snap.Stations[0].PI)
	assert.Equal(t, "running", snap.Processes["tuner"])
	assert.Equal(t, 3, snap.QueueDepth)
	assert.Equal(t, 1, snap.ActiveTraffic)
	assert.Equal(t, 0, snap.ActiveEmergency)
	assert.NotEmpty(t, snap.Timestamp)
}

func TestPublishLoopPublishesImmediatelyAndOnTick(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	queue := &fakeQueue{depth: 0}
	procs := &fakeProcs{states: map[string]string{}}
	pub := &fakePublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		status.PublishLoop(ctx, 10*time.Millisecond, engine, queue, procs, pub)
	}()

	require.Eventually(t, func() bool { return pub.count() >= 1 }, time.Second, time.Millisecond)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(pub.last(), &snap))
	assert.Contains(t, snap, "timestamp")

	require.Eventually(t, func() bool { return pub.count() >= 2 }, time.Second, time.Millisecond)

	cancel()
	<-done
}
