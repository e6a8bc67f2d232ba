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

package rules_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/kv"
	"github.com/tubalainen/rds-supervisor/internal/rds"
	"github.com/tubalainen/rds-supervisor/internal/rules"
	"github.com/tubalainen/rds-supervisor/internal/store"
)

func ptrStr(s string) *string { return &s }
func ptrBool(b bool) *bool    { return &b }

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	events    map[int64]*store.StationEvent
	radiotext map[int64]store.RadiotextList
	txStatus  map[int64]config.TranscriptionStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:    make(map[int64]*store.StationEvent),
		radiotext: make(map[int64]store.RadiotextList),
		txStatus:  make(map[int64]config.TranscriptionStatus),
	}
}

func (f *fakeStore) InsertEvent(e *store.StationEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	cp := *e
	f.events[id] = &cp
	return id, nil
}

func (f *fakeStore) UpdateRadiotext(id int64, radiotext store.RadiotextList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radiotext[id] = radiotext
	return nil
}

func (f *fakeStore) EndEvent(id int64, endedAt string, durationSec int, radiotext store.RadiotextList, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[id]; ok {
		ev.State = store.StateEnd
		ev.EndedAt = &endedAt
		ev.DurationSec = durationSec
	}
	return nil
}

func (f *fakeStore) UpdateTranscriptionStatus(eventID int64, status *config.TranscriptionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status != nil {
		f.txStatus[eventID] = *status
	}
	return nil
}

func (f *fakeStore) event(id int64) *store.StationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id]
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []fakeMessage
}

type fakeMessage struct {
	topic   string
	payload map[string]any
}

func (f *fakePublisher) Publish(topic string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payload map[string]any
	_ = json.Unmarshal(message, &payload)
	f.messages = append(f.messages, fakeMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) last() fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeRecorder struct {
	mu           sync.Mutex
	started      []int64
	stopped      int
	stopHasAudio bool
}

func (r *fakeRecorder) Start(eventID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, eventID)
}

func (r *fakeRecorder) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return r.stopHasAudio
}

func newTestEngine(t *testing.T) (*rules.Engine, *fakeStore, *fakePublisher) {
	t.Helper()
	st := newFakeStore()
	pub := &fakePublisher{}
	kvStore, err := kv.MakeKV(context.Background(), &config.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		PublishMode: config.PublishModeEssential,
		Recorder: config.Recorder{
			RecordEventTypes: []config.EventType{config.EventTypeTraffic, config.EventTypeEmergency},
		},
	}
	return rules.NewEngine(cfg, st, pub, kvStore, nil), st, pub
}

func TestDispatchTrafficStartAndEnd(t *testing.T) {
	t.Parallel()
	engine, st, pub := newTestEngine(t)
	rec := &fakeRecorder{}
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M", Recorder: rec}

	start := rds.DecodedGroup{PI: ptrStr("C201"), TA: ptrBool(true), Timestamp: ptrStr("2026-07-31T12:00:00")}
	engine.Dispatch(context.Background(), sc, start)

	require.Equal(t, 1, pub.count())
	msg := pub.last()
	assert.Equal(t, "alert", msg.topic)
	assert.Equal(t, "traffic", msg.payload["type"])
	assert.Equal(t, "start", msg.payload["state"])
	assert.Len(t, rec.started, 1)
	assert.Equal(t, 1, engine.ActiveTrafficCount())

	end := rds.DecodedGroup{PI: ptrStr("C201"), TA: ptrBool(false), Timestamp: ptrStr("2026-07-31T12:05:00")}
	engine.Dispatch(context.Background(), sc, end)

	require.Equal(t, 2, pub.count())
	endMsg := pub.last()
	assert.Equal(t, "end", endMsg.payload["state"])
	assert.Equal(t, 1, rec.stopped)
	assert.Equal(t, 0, engine.ActiveTrafficCount())

	ev := st.event(1)
	require.NotNil(t, ev)
	assert.Equal(t, store.StateEnd, ev.State)
	assert.Equal(t, 300, ev.DurationSec, "12:00:00 to 12:05:00 is 300 seconds")
	require.NotNil(t, ev.EndedAt)
	assert.Equal(t, "2026-07-31T12:05:00", *ev.EndedAt)
}

// TestDispatchTACycleCollapsesRadiotext is the full announcement cycle:
// TA up, three RadioText arrivals "X", "X", "Y", TA down. The event ends
// with radiotext ["X","Y"] and a 30 second duration.
func TestDispatchTACycleCollapsesRadiotext(t *testing.T) {
	t.Parallel()
	engine, st, _ := newTestEngine(t)
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M"}

	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("A123"), TA: ptrBool(true), Timestamp: ptrStr("2025-01-01T00:00:00")})
	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("A123"), RadioText: ptrStr("X"), Timestamp: ptrStr("2025-01-01T00:00:05")})
	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("A123"), RadioText: ptrStr("X"), Timestamp: ptrStr("2025-01-01T00:00:10")})
	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("A123"), RadioText: ptrStr("Y"), Timestamp: ptrStr("2025-01-01T00:00:15")})
	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("A123"), TA: ptrBool(false), Timestamp: ptrStr("2025-01-01T00:00:30")})

	ev := st.event(1)
	require.NotNil(t, ev)
	assert.Equal(t, store.StateEnd, ev.State)
	assert.Equal(t, 30, ev.DurationSec)
	assert.Equal(t, store.RadiotextList{"X", "Y"}, st.radiotext[1])
}

func TestDispatchDedupSuppressesRepeatedTA(t *testing.T) {
	t.Parallel()
	engine, _, pub := newTestEngine(t)
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M"}

	g := rds.DecodedGroup{PI: ptrStr("C201"), TA: ptrBool(true), Timestamp: ptrStr("2026-07-31T12:00:00")}
	engine.Dispatch(context.Background(), sc, g)
	engine.Dispatch(context.Background(), sc, g)

	assert.Equal(t, 1, pub.count(), "repeated TA=true should not retrigger a start")
}

func TestDispatchRadiotextAppendsOnlyWhileTrafficActive(t *testing.T) {
	t.Parallel()
	engine, st, pub := newTestEngine(t)
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M"}

	start := rds.DecodedGroup{PI: ptrStr("C201"), TA: ptrBool(true), Timestamp: ptrStr("2026-07-31T12:00:00")}
	engine.Dispatch(context.Background(), sc, start)

	rt1 := rds.DecodedGroup{PI: ptrStr("C201"), RadioText: ptrStr("Accident on E4"), Timestamp: ptrStr("2026-07-31T12:01:00")}
	engine.Dispatch(context.Background(), sc, rt1)
	rt2 := rds.DecodedGroup{PI: ptrStr("C201"), RadioText: ptrStr("Accident on E4"), Timestamp: ptrStr("2026-07-31T12:01:05")}
	engine.Dispatch(context.Background(), sc, rt2)

	assert.Equal(t, 2, pub.count(), "duplicate adjacent radiotext must not republish")

	ev := st.event(1)
	require.NotNil(t, ev)

	// A fresh group with no active traffic must not append radiotext at all.
	end := rds.DecodedGroup{PI: ptrStr("C201"), TA: ptrBool(false), Timestamp: ptrStr("2026-07-31T12:05:00")}
	engine.Dispatch(context.Background(), sc, end)
	rt3 := rds.DecodedGroup{PI: ptrStr("C201"), RadioText: ptrStr("Cleared"), Timestamp: ptrStr("2026-07-31T12:06:00")}
	engine.Dispatch(context.Background(), sc, rt3)
	assert.Equal(t, 3, pub.count(), "radiotext with no active traffic event must not publish")
}

func TestDispatchPTYAlarmOpensAndClosesEmergency(t *testing.T) {
	t.Parallel()
	engine, st, pub := newTestEngine(t)
	rec := &fakeRecorder{}
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M", Recorder: rec}

	alarm := rds.DecodedGroup{PI: ptrStr("C201"), ProgType: ptrStr("Alarm"), Timestamp: ptrStr("2026-07-31T12:00:00")}
	engine.Dispatch(context.Background(), sc, alarm)
	require.Equal(t, 1, engine.ActiveEmergencyCount())
	assert.Equal(t, "emergency", pub.last().payload["type"])
	assert.Equal(t, "active", pub.last().payload["state"])

	normal := rds.DecodedGroup{PI: ptrStr("C201"), ProgType: ptrStr("Varied"), Timestamp: ptrStr("2026-07-31T12:10:00")}
	engine.Dispatch(context.Background(), sc, normal)
	assert.Equal(t, 0, engine.ActiveEmergencyCount())
	assert.Equal(t, "end", pub.last().payload["state"])

	ev := st.event(1)
	require.NotNil(t, ev)
	assert.Equal(t, store.StateEnd, ev.State)
}

func TestDispatchEONSuppressesFirstSighting(t *testing.T) {
	t.Parallel()
	engine, st, pub := newTestEngine(t)
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M"}

	first := rds.DecodedGroup{
		PI:           ptrStr("C201"),
		Timestamp:    ptrStr("2026-07-31T12:00:00"),
		OtherNetwork: &rds.OtherNetwork{PI: "C3A4", TA: ptrBool(true)},
	}
	engine.Dispatch(context.Background(), sc, first)
	assert.Equal(t, 0, pub.count(), "the first sighting of a linked station's TA value must be suppressed")

	second := rds.DecodedGroup{
		PI:           ptrStr("C201"),
		Timestamp:    ptrStr("2026-07-31T12:05:00"),
		OtherNetwork: &rds.OtherNetwork{PI: "C3A4", TA: ptrBool(false)},
	}
	engine.Dispatch(context.Background(), sc, second)
	require.Equal(t, 1, pub.count(), "a genuine transition after the first sighting must publish")
	assert.Equal(t, "eon_traffic", pub.last().payload["type"])

	require.Len(t, st.events, 1)
	assert.Equal(t, store.StateReceived, st.events[1].State)
}

func TestStationStatusesAreSortedByPI(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(t)
	sc := rules.StationContext{Label: "103.5M", Frequency: "103.5M"}

	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("C3A4"), PS: ptrStr("STN_B")})
	engine.Dispatch(context.Background(), sc, rds.DecodedGroup{PI: ptrStr("C201"), PS: ptrStr("STN_A")})

	statuses := engine.StationStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "C201", statuses[0].PI)
	assert.Equal(t, "C3A4", statuses[1].PI)
}
