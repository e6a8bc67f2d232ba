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

// Package pubsub broadcasts rule-engine events (announcement-started,
// announcement-ended, status snapshots) to whatever is listening: the
// websocket broadcaster always, and an MQTT broker or Redis channel when
// configured.
package pubsub

import (
	"context"
	"fmt"

	"github.com/tubalainen/rds-supervisor/internal/config"
)

// PubSub is a topic-based broadcast abstraction. Publish never blocks on
// slow subscribers; a subscriber that falls behind drops messages rather
// than stalling the publisher.
type PubSub interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string) Subscription
	Close() error
}

// Subscription is a single listener's view of a topic.
type Subscription interface {
	Close() error
	Channel() <-chan []byte
}

// MakePubSub builds the broker backend selected by configuration. MQTT and
// Redis are mutually exclusive remote backends; when neither is enabled the
// in-memory backend still fans events out to same-process subscribers (the
// websocket broadcaster).
func MakePubSub(ctx context.Context, cfg *config.Config) (PubSub, error) {
	switch {
	case cfg.MQTT.Enabled:
		ps, err := makeMQTTPubSub(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt pubsub: %w", err)
		}
		return ps, nil
	case cfg.Redis.Enabled:
		ps, err := makePubSubFromRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis pubsub: %w", err)
		}
		return ps, nil
	default:
		return makeInMemoryPubSub(), nil
	}
}
