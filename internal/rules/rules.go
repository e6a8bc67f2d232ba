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

// Package rules is the event-tracking state machine: it watches the decoded
// RDS group stream for TA transitions and PTY alarm-set membership, dedups
// every observed field against a key-value backed table so only genuine
// transitions reach the event store, and drives each station's recorder
// through the capture lifecycle.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/kv"
	"github.com/tubalainen/rds-supervisor/internal/metrics"
	"github.com/tubalainen/rds-supervisor/internal/rds"
	"github.com/tubalainen/rds-supervisor/internal/store"
)

// Recorder is the subset of a station recorder the engine needs to drive
// the capture lifecycle. Satisfied by *recorder.Recorder.
type Recorder interface {
	Start(eventID int64)
	Stop() bool
}

// EventStore is the subset of the durable event log the engine writes to.
// Satisfied by *store.Store.
type EventStore interface {
	InsertEvent(e *store.StationEvent) (int64, error)
	UpdateRadiotext(id int64, radiotext store.RadiotextList) error
	EndEvent(id int64, endedAt string, durationSec int, radiotext store.RadiotextList, data json.RawMessage) error
	UpdateTranscriptionStatus(eventID int64, status *config.TranscriptionStatus) error
}

// Publisher is the subset of the broker abstraction the engine publishes
// alerts and, in "all" publish mode, retained per-PI topics to. Satisfied
// by pubsub.PubSub.
type Publisher interface {
	Publish(topic string, message []byte) error
}

// StationContext names the physical station a decoded group arrived on:
// its display label, its tuned frequency (for the event row), and the
// recorder the engine may start/stop for it.
type StationContext struct {
	Label     string
	Frequency string
	Recorder  Recorder
}

// StationStatus is the public, read-only view of one PI's accumulated
// station info, used by internal/status to build its periodic snapshot.
type StationStatus struct {
	PI       string `json:"pi"`
	PS       string `json:"ps,omitempty"`
	ProgType string `json:"prog_type,omitempty"`
}

type trafficState struct {
	eventID   int64
	startedAt string
	radiotext []string
}

type emergencyState struct {
	eventID   int64
	startedAt string
}

type stationInfo struct {
	ps       string
	progType string
}

// Engine is the event-tracking state machine. One instance serves every
// configured station; state is keyed by PI rather than by station, since a
// PI is a unique broadcaster identity. The dedup table (pi/topic -> hash
// of the last value) is backed by kv.KV, so it is shared across instances
// when Redis is configured.
type Engine struct {
	mu sync.Mutex

	activeTraffic   map[string]*trafficState
	activeEmergency map[string]*emergencyState
	info            map[string]*stationInfo
	data            map[string]map[string]any

	cfg     *config.Config
	store   EventStore
	pub     Publisher
	kv      kv.KV
	metrics *metrics.Metrics
}

// NewEngine builds an Engine.
func NewEngine(cfg *config.Config, st EventStore, pub Publisher, kvStore kv.KV, m *metrics.Metrics) *Engine {
	return &Engine{
		activeTraffic:   make(map[string]*trafficState),
		activeEmergency: make(map[string]*emergencyState),
		info:            make(map[string]*stationInfo),
		data:            make(map[string]map[string]any),
		cfg:             cfg,
		store:           st,
		pub:             pub,
		kv:              kvStore,
		metrics:         m,
	}
}

var alertProgTypes = map[string]bool{
	"Alarm":                 true,
	"Alarm - Loss of radio": true,
}

func isAlertPTY(pty string) bool { return alertProgTypes[pty] }

// Dispatch is the central decoded-group handler, one call per parsed
// demodulator line. It updates the per-PI station cache unconditionally,
// then runs every dedup-gated trigger in turn: TA change, full RadioText
// (only while a traffic event is active), PTY alarm membership, and EON
// linked-station TA (first-sight suppressed).
func (e *Engine) Dispatch(ctx context.Context, sc StationContext, g rds.DecodedGroup) {
	if g.PI == nil || *g.PI == "" {
		return
	}
	pi := *g.PI
	ts := g.TimestampOrNow()

	e.updateStationInfo(pi, g)

	if g.TA != nil && e.changed(ctx, pi, "traffic/ta", *g.TA) {
		e.onTAChange(sc, pi, *g.TA, g, ts)
	}

	if rt := firstNonEmpty(g.RadioText, g.PartialRadioText); rt != "" {
		if e.changed(ctx, pi, "programme/rt", rt) && g.RadioText != nil && e.isActiveTraffic(pi) {
			e.onRadiotext(sc, pi, strings.TrimSpace(*g.RadioText), ts)
		}
	}

	if g.ProgType != nil && *g.ProgType != "" && e.changed(ctx, pi, "station/pty", *g.ProgType) {
		if isAlertPTY(*g.ProgType) {
			e.onPTYAlert(sc, pi, *g.ProgType, g, ts)
		} else if e.isActiveEmergency(pi) {
			e.onPTYNormal(sc, pi, *g.ProgType, ts)
		}
	}

	if g.OtherNetwork != nil && g.OtherNetwork.TA != nil && g.OtherNetwork.PI != "" {
		otherPI := g.OtherNetwork.PI
		eonKey := fmt.Sprintf("eon/%s/ta", otherPI)
		wasKnown := e.isKnown(ctx, pi, eonKey)
		if e.changed(ctx, pi, eonKey, *g.OtherNetwork.TA) && wasKnown {
			e.onEONTA(sc, pi, otherPI, *g.OtherNetwork.TA, g, ts)
		}
	}

	if e.cfg.PublishMode == config.PublishModeAll {
		e.publishExtendedTopics(ctx, pi, g, ts)
	}
}

func firstNonEmpty(full, partial *string) string {
	if full != nil {
		return *full
	}
	if partial != nil {
		return *partial
	}
	return ""
}

func (e *Engine) updateStationInfo(pi string, g rds.DecodedGroup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.info[pi]
	if !ok {
		info = &stationInfo{}
		e.info[pi] = info
	}
	if g.PS != nil {
		info.ps = strings.TrimSpace(*g.PS)
	} else if g.PartialPS != nil && info.ps == "" {
		info.ps = strings.TrimSpace(*g.PartialPS)
	}
	if g.ProgType != nil {
		info.progType = *g.ProgType
	}
}

func (e *Engine) psFor(pi string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if info, ok := e.info[pi]; ok {
		return info.ps
	}
	return ""
}

// StationStatuses returns a stable-ordered snapshot of every PI's cached
// station info, for internal/status's periodic broadcast.
func (e *Engine) StationStatuses() []StationStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StationStatus, 0, len(e.info))
	for pi, info := range e.info {
		out = append(out, StationStatus{PI: pi, PS: info.ps, ProgType: info.progType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PI < out[j].PI })
	return out
}

// ActiveTrafficCount reports the number of PIs with a non-terminal traffic
// event in progress.
func (e *Engine) ActiveTrafficCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeTraffic)
}

// ActiveEmergencyCount reports the number of PIs with an active emergency.
func (e *Engine) ActiveEmergencyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeEmergency)
}
