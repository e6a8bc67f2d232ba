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
	"context"
	"encoding/json"

	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/rds"
)

func (e *Engine) publish(topic string, payload map[string]any) {
	if e.pub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logging.Errorf("rules: failed to marshal %s payload: %v", topic, err)
		return
	}
	if err := e.pub.Publish(topic, raw); err != nil {
		logging.Errorf("rules: failed to publish to %s: %v", topic, err)
	}
}

// publishExtendedTopics republishes slowly changing per-PI fields on their
// own retained topics, only active in "all" publish mode.
func (e *Engine) publishExtendedTopics(ctx context.Context, pi string, g rds.DecodedGroup, ts string) {
	ps := firstNonEmpty(g.PS, g.PartialPS)
	if ps != "" && e.changed(ctx, pi, "station/ps", ps) {
		e.publish(pi+"/station/ps", map[string]any{"ps": ps, "timestamp": ts})
	}

	if g.IsMusic != nil && e.changed(ctx, pi, "programme/music", *g.IsMusic) {
		e.publish(pi+"/programme/music", map[string]any{"is_music": *g.IsMusic, "timestamp": ts})
	}

	if g.DI != nil && e.changed(ctx, pi, "programme/di", *g.DI) {
		e.publish(pi+"/programme/di", map[string]any{"di": *g.DI, "timestamp": ts})
	}

	if len(g.AltFrequenciesA) > 0 && e.changed(ctx, pi, "station/af_a", g.AltFrequenciesA) {
		e.publish(pi+"/station/af", map[string]any{"frequencies_khz": g.AltFrequenciesA, "timestamp": ts})
	}
	if len(g.AltFrequenciesB) > 0 && e.changed(ctx, pi, "station/af_b", g.AltFrequenciesB) {
		e.publish(pi+"/station/af", map[string]any{"frequencies_khz": g.AltFrequenciesB, "timestamp": ts})
	}

	if g.OtherNetwork != nil {
		e.publish(pi+"/eon/"+g.OtherNetwork.PI, map[string]any{"other_network": g.OtherNetwork, "timestamp": ts})
	}

	if g.ClockTime != nil {
		e.publish(pi+"/clock", map[string]any{"clock_time": *g.ClockTime, "timestamp": ts})
	}
}
