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

package pubsub

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tubalainen/rds-supervisor/internal/config"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

// makeMQTTPubSub connects to a home-automation-style broker so traffic and
// emergency events reach dashboards and automations outside this process,
// not just the bundled websocket UI.
func makeMQTTPubSub(cfg *config.Config) (PubSub, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.BrokerURL).
		SetClientID(cfg.MQTT.ClientID).
		SetUsername(cfg.MQTT.Username).
		SetPassword(cfg.MQTT.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.MQTT.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	return &mqttPubSub{
		client:      client,
		topicPrefix: cfg.MQTT.TopicPrefix,
		qos:         byte(cfg.MQTT.QoS),
		retainState: cfg.MQTT.RetainState,
	}, nil
}

type mqttPubSub struct {
	client      mqtt.Client
	topicPrefix string
	qos         byte
	retainState bool
}

func (ps *mqttPubSub) fullTopic(topic string) string {
	if ps.topicPrefix == "" {
		return topic
	}
	return ps.topicPrefix + "/" + topic
}

// Publish sends the message to the broker. Per-PI state topics are retained
// (when configured) so late-joining dashboard subscribers see the last value;
// the event stream topics never are, since a stale alert replayed on
// subscribe would look like a live announcement.
func (ps *mqttPubSub) Publish(topic string, message []byte) error {
	retain := ps.retainState && topic != "alert" && topic != "status"
	token := ps.client.Publish(ps.fullTopic(topic), ps.qos, retain, message)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return nil
}

func (ps *mqttPubSub) Subscribe(topic string) Subscription {
	full := ps.fullTopic(topic)
	ch := make(chan []byte, 16)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case ch <- msg.Payload():
		default:
			// Slow subscriber; drop rather than block the broker's callback goroutine.
		}
	}

	token := ps.client.Subscribe(full, ps.qos, handler)
	token.Wait()

	return &mqttSubscription{client: ps.client, topic: full, ch: ch}
}

func (ps *mqttPubSub) Close() error {
	ps.client.Disconnect(uint(mqttPublishTimeout.Milliseconds()))
	return nil
}

type mqttSubscription struct {
	client mqtt.Client
	topic  string
	ch     chan []byte
}

func (s *mqttSubscription) Close() error {
	token := s.client.Unsubscribe(s.topic)
	token.Wait()
	close(s.ch)
	return token.Error()
}

func (s *mqttSubscription) Channel() <-chan []byte {
	return s.ch
}
