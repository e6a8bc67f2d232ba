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

// Package wsbroadcast is the thin read-only websocket surface: every
// connected peer receives every message published to a fixed set of
// broker topics ("alert", "status"), with no per-peer filtering or
// request/response protocol.
package wsbroadcast

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/pubsub"
)

const bufferSize = 1024

// Hub fans out messages from a set of broker topics to every connected
// websocket peer. It has no notion of per-peer subscriptions: a peer
// either receives everything or disconnects.
type Hub struct {
	pub    pubsub.PubSub
	topics []string

	upgrader websocket.Upgrader
}

// NewHub builds a Hub that relays the given broker topics to every peer.
func NewHub(ps pubsub.PubSub, topics []string) *Hub {
	return &Hub{
		pub:    ps,
		topics: topics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a websocket connection and streams
// every message published to the hub's topics until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf("wsbroadcast: failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	subs := make([]pubsub.Subscription, 0, len(h.topics))
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	merged := make(chan []byte, bufferSize)
	for _, topic := range h.topics {
		sub := h.pub.Subscribe(topic)
		subs = append(subs, sub)
		go relay(sub.Channel(), merged)
	}

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	for {
		select {
		case <-closed:
			return
		case msg := <-merged:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func relay(src <-chan []byte, dst chan<- []byte) {
	for msg := range src {
		dst <- msg
	}
}

// readPump drains and discards anything the peer sends, existing only to
// detect the peer closing the connection (gorilla/websocket requires a
// reader goroutine to observe close frames and I/O errors).
func (h *Hub) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
