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

package rules

import (
	"fmt"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/rds"
	"github.com/tubalainen/rds-supervisor/internal/store"
)

const timestampLayout = "2006-01-02T15:04:05"

func durationSeconds(start, end string) int {
	s, err1 := parseTimestamp(start)
	e, err2 := parseTimestamp(end)
	if err1 != nil || err2 != nil {
		return 0
	}
	d := int(e.Sub(s).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

func parseTimestamp(s string) (time.Time, error) {
	if len(s) < len(timestampLayout) {
		return time.Time{}, fmt.Errorf("timestamp too short: %q", s)
	}
	return time.Parse(timestampLayout, s[:len(timestampLayout)])
}

func (e *Engine) isActiveTraffic(pi string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.activeTraffic[pi]
	return ok
}

func (e *Engine) isActiveEmergency(pi string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.activeEmergency[pi]
	return ok
}

func (e *Engine) recordable(t config.EventType) bool {
	for _, et := range e.cfg.Recorder.RecordEventTypes {
		if et == t {
			return true
		}
	}
	return false
}

func (e *Engine) recordOutcome(eventType, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordRulesTransition(eventType, outcome)
	}
}

// onTAChange handles a TA flag transition. TA=1 opens a new traffic event,
// finalizing any prior one still open for this PI first, so a PI never
// carries two open announcements. TA=0 closes the currently open event, if
// any.
func (e *Engine) onTAChange(sc StationContext, pi string, ta bool, g rds.DecodedGroup, ts string) {
	if !ta {
		e.mu.Lock()
		st, ok := e.activeTraffic[pi]
		if ok {
			delete(e.activeTraffic, pi)
		}
		e.mu.Unlock()
		if !ok {
			return
		}
		e.endTraffic(sc, pi, st, ts)
		return
	}

	e.mu.Lock()
	prior, hadPrior := e.activeTraffic[pi]
	if hadPrior {
		delete(e.activeTraffic, pi)
	}
	e.mu.Unlock()
	if hadPrior {
		e.endTraffic(sc, pi, prior, ts)
	}

	data := e.mergeData(pi, buildGroupData(g))
	ev := &store.StationEvent{
		Type:      config.EventTypeTraffic,
		Severity:  store.SeverityWarning,
		State:     store.StateStart,
		PI:        pi,
		StationPS: e.psFor(pi),
		Frequency: sc.Frequency,
		Data:      data,
		StartedAt: ts,
	}
	id, err := e.store.InsertEvent(ev)
	if err != nil {
		logging.Errorf("rules: failed to insert traffic start event for %s: %v", pi, err)
		e.recordOutcome("traffic", "store_error")
		return
	}

	e.mu.Lock()
	e.activeTraffic[pi] = &trafficState{eventID: id, startedAt: ts}
	e.mu.Unlock()

	if sc.Recorder != nil && e.recordable(config.EventTypeTraffic) {
		sc.Recorder.Start(id)
		recording := config.TranscriptionStatusRecording
		if err := e.store.UpdateTranscriptionStatus(id, &recording); err != nil {
			logging.Errorf("rules: failed to mark event %d recording: %v", id, err)
		}
	}

	e.recordOutcome("traffic", "start")
	e.publish("alert", map[string]any{
		"type": "traffic", "state": "start", "pi": pi, "frequency": sc.Frequency,
		"event_id": id, "timestamp": ts,
	})
}

func (e *Engine) endTraffic(sc StationContext, pi string, st *trafficState, ts string) {
	hasAudio := false
	if sc.Recorder != nil {
		hasAudio = sc.Recorder.Stop()
	}
	duration := durationSeconds(st.startedAt, ts)
	if hasAudio {
		saving := config.TranscriptionStatusSaving
		if err := e.store.UpdateTranscriptionStatus(st.eventID, &saving); err != nil {
			logging.Errorf("rules: failed to mark event %d saving: %v", st.eventID, err)
		}
	}

	var rtList store.RadiotextList
	if st.radiotext != nil {
		rtList = store.RadiotextList(st.radiotext)
	}
	if err := e.store.EndEvent(st.eventID, ts, duration, rtList, nil); err != nil {
		logging.Errorf("rules: failed to end traffic event %d: %v", st.eventID, err)
	}

	e.recordOutcome("traffic", "end")
	e.publish("alert", map[string]any{
		"type": "traffic", "state": "end", "pi": pi, "frequency": sc.Frequency,
		"event_id": st.eventID, "radiotext": st.radiotext, "duration_sec": duration, "timestamp": ts,
	})
}

// onRadiotext appends a newly received full RadioText string to the active
// traffic event's radiotext sequence, skipping it if it repeats the last
// entry; the stored sequence never holds adjacent duplicates.
func (e *Engine) onRadiotext(sc StationContext, pi, text string, ts string) {
	e.mu.Lock()
	st, ok := e.activeTraffic[pi]
	if !ok {
		e.mu.Unlock()
		return
	}
	if len(st.radiotext) == 0 || st.radiotext[len(st.radiotext)-1] != text {
		st.radiotext = append(st.radiotext, text)
	}
	eventID := st.eventID
	rtCopy := append([]string(nil), st.radiotext...)
	e.mu.Unlock()

	if err := e.store.UpdateRadiotext(eventID, store.RadiotextList(rtCopy)); err != nil {
		logging.Errorf("rules: failed to update radiotext for event %d: %v", eventID, err)
		return
	}
	e.recordOutcome("traffic", "update")
	e.publish("alert", map[string]any{
		"type": "traffic", "state": "update", "pi": pi, "frequency": sc.Frequency,
		"event_id": eventID, "radiotext": rtCopy, "timestamp": ts,
	})
}

// onPTYAlert handles a PTY transition into the alarm set, opening a new
// emergency event.
func (e *Engine) onPTYAlert(sc StationContext, pi, pty string, g rds.DecodedGroup, ts string) {
	data := e.mergeData(pi, buildGroupData(g))
	ev := &store.StationEvent{
		Type:      config.EventTypeEmergency,
		Severity:  store.SeverityCritical,
		State:     store.StateActive,
		PI:        pi,
		StationPS: e.psFor(pi),
		Frequency: sc.Frequency,
		Data:      data,
		StartedAt: ts,
	}
	id, err := e.store.InsertEvent(ev)
	if err != nil {
		logging.Errorf("rules: failed to insert emergency event for %s: %v", pi, err)
		e.recordOutcome("emergency", "store_error")
		return
	}

	e.mu.Lock()
	e.activeEmergency[pi] = &emergencyState{eventID: id, startedAt: ts}
	e.mu.Unlock()

	if sc.Recorder != nil && e.recordable(config.EventTypeEmergency) {
		sc.Recorder.Start(id)
		recording := config.TranscriptionStatusRecording
		if err := e.store.UpdateTranscriptionStatus(id, &recording); err != nil {
			logging.Errorf("rules: failed to mark event %d recording: %v", id, err)
		}
	}

	e.recordOutcome("emergency", "active")
	e.publish("alert", map[string]any{
		"type": "emergency", "state": "active", "pi": pi, "prog_type": pty,
		"frequency": sc.Frequency, "event_id": id, "timestamp": ts,
	})
}

// onPTYNormal handles a PTY transition out of the alarm set, closing the
// active emergency event.
func (e *Engine) onPTYNormal(sc StationContext, pi, pty string, ts string) {
	e.mu.Lock()
	st, ok := e.activeEmergency[pi]
	if ok {
		delete(e.activeEmergency, pi)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	if sc.Recorder != nil && sc.Recorder.Stop() {
		saving := config.TranscriptionStatusSaving
		if err := e.store.UpdateTranscriptionStatus(st.eventID, &saving); err != nil {
			logging.Errorf("rules: failed to mark event %d saving: %v", st.eventID, err)
		}
	}

	duration := durationSeconds(st.startedAt, ts)
	if err := e.store.EndEvent(st.eventID, ts, duration, nil, nil); err != nil {
		logging.Errorf("rules: failed to end emergency event %d: %v", st.eventID, err)
	}

	e.recordOutcome("emergency", "end")
	e.publish("alert", map[string]any{
		"type": "emergency", "state": "end", "pi": pi, "prog_type": pty,
		"event_id": st.eventID, "duration_sec": duration, "timestamp": ts,
	})
}

// onEONTA records a linked station's traffic announcement received over
// EON. These rows are informational only: they arrive in a terminal state
// since no audio or transcription is ever available for a station this
// process is not tuned to.
func (e *Engine) onEONTA(sc StationContext, pi, otherPI string, ta bool, g rds.DecodedGroup, ts string) {
	data := e.mergeData(pi, buildGroupData(g))
	ev := &store.StationEvent{
		Type:      config.EventTypeEONTraffic,
		Severity:  store.SeverityInfo,
		State:     store.StateReceived,
		PI:        pi,
		StationPS: e.psFor(pi),
		Frequency: sc.Frequency,
		Data:      data,
		StartedAt: ts,
	}
	id, err := e.store.InsertEvent(ev)
	if err != nil {
		logging.Errorf("rules: failed to insert eon_traffic event for %s/%s: %v", pi, otherPI, err)
		e.recordOutcome("eon_traffic", "store_error")
		return
	}

	e.recordOutcome("eon_traffic", "received")
	e.publish("alert", map[string]any{
		"type": "eon_traffic", "state": "received", "pi": pi, "other_pi": otherPI, "ta": ta,
		"frequency": sc.Frequency, "event_id": id, "timestamp": ts,
	})
}
