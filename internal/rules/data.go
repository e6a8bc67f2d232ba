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
	"encoding/json"

	"github.com/tubalainen/rds-supervisor/internal/rds"
)

// buildGroupData extracts the opaque extended fields a decoded group may
// carry, named ones only, for merging into an event's accumulated data
// column.
func buildGroupData(g rds.DecodedGroup) map[string]any {
	out := map[string]any{}
	if g.OtherNetwork != nil {
		out["other_network"] = g.OtherNetwork
	}
	if g.RadiotextPlus != nil {
		out["radiotext_plus"] = g.RadiotextPlus
	}
	if g.ClockTime != nil {
		out["clock_time"] = *g.ClockTime
	}
	if g.Country != nil {
		out["country"] = *g.Country
	}
	if g.Language != nil {
		out["language"] = *g.Language
	}
	if g.DI != nil {
		out["di"] = *g.DI
	}
	if g.IsMusic != nil {
		out["is_music"] = *g.IsMusic
	}
	if g.BLER != nil {
		out["bler"] = *g.BLER
	}
	if len(g.AltFrequenciesA) > 0 {
		out["alt_frequencies_a"] = g.AltFrequenciesA
	}
	if len(g.AltFrequenciesB) > 0 {
		out["alt_frequencies_b"] = g.AltFrequenciesB
	}
	return out
}

// mergeData folds fields into the per-PI accumulated data cache (new
// values overwrite old ones under the same key) and returns the merged
// result marshaled for the event store's data column.
func (e *Engine) mergeData(pi string, fields map[string]any) json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.data[pi]
	if !ok {
		cur = map[string]any{}
	}
	for k, v := range fields {
		cur[k] = v
	}
	e.data[pi] = cur

	raw, err := json.Marshal(cur)
	if err != nil {
		return nil
	}
	return raw
}
