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

// Package status publishes a periodic summary of the supervisor's live
// state: every station's cached PI/PS/PTY, the transcription backlog depth,
// and the counts of currently active traffic and emergency events.
package status

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/rules"
)

// Snapshot is the published status payload.
type Snapshot struct {
	Stations        []rules.StationStatus `json:"stations"`
	Processes       map[string]string     `json:"processes"`
	QueueDepth      int                   `json:"queue_depth"`
	ActiveTraffic   int                   `json:"active_traffic"`
	ActiveEmergency int                   `json:"active_emergency"`
	Timestamp       string                `json:"timestamp"`
}

// Engine is the subset of the rules engine a snapshot is built from.
// Satisfied by *rules.Engine.
type Engine interface {
	StationStatuses() []rules.StationStatus
	ActiveTrafficCount() int
	ActiveEmergencyCount() int
}

// QueueDepther is the subset of the transcription queue a snapshot reads.
// Satisfied by *txqueue.Queue.
type QueueDepther interface {
	Depth() int
}

// ProcessStates is the subset of the tuner pipeline a snapshot reads: the
// supervised lifecycle state of every child process. Satisfied by
// *tuner.Pipeline.
type ProcessStates interface {
	States() map[string]string
}

// Publisher is the subset of the broker abstraction a snapshot is
// published through. Satisfied by pubsub.PubSub.
type Publisher interface {
	Publish(topic string, message []byte) error
}

const topic = "status"

// Build assembles one Snapshot from the engine, queue, and pipeline's
// current state.
func Build(engine Engine, queue QueueDepther, procs ProcessStates) Snapshot {
	return Snapshot{
		Stations:        engine.StationStatuses(),
		Processes:       procs.States(),
		QueueDepth:      queue.Depth(),
		ActiveTraffic:   engine.ActiveTrafficCount(),
		ActiveEmergency: engine.ActiveEmergencyCount(),
		Timestamp:       time.Now().UTC().Format("2006-01-02T15:04:05"),
	}
}

// PublishLoop builds and publishes a Snapshot to the "status" topic on the
// given interval until ctx is canceled. It is meant to run as a single
// background goroutine for the life of the process.
func PublishLoop(ctx context.Context, interval time.Duration, engine Engine, queue QueueDepther, procs ProcessStates, pub Publisher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	publishOnce(engine, queue, procs, pub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishOnce(engine, queue, procs, pub)
		}
	}
}

func publishOnce(engine Engine, queue QueueDepther, procs ProcessStates, pub Publisher) {
	snap := Build(engine, queue, procs)
	raw, err := json.Marshal(snap)
	if err != nil {
		logging.Errorf("status: failed to marshal snapshot: %v", err)
		return
	}
	if err := pub.Publish(topic, raw); err != nil {
		logging.Errorf("status: failed to publish snapshot: %v", err)
	}
}
