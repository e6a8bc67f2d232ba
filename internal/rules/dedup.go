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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tubalainen/rds-supervisor/internal/logging"
)

func dedupKey(pi, topic string) string {
	return fmt.Sprintf("dedup/%s/%s", pi, topic)
}

func hashValue(value any) string {
	raw, _ := json.Marshal(value)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// changed reports whether value differs from the last value recorded for
// (pi, topic), recording it either way. A missing key counts as changed:
// the first observation of any topic is always a transition.
func (e *Engine) changed(ctx context.Context, pi, topic string, value any) bool {
	key := dedupKey(pi, topic)
	encoded := hashValue(value)

	prev, err := e.kv.Get(ctx, key)
	if err == nil && string(prev) == encoded {
		return false
	}
	if err := e.kv.Set(ctx, key, []byte(encoded)); err != nil {
		logging.Errorf("rules: failed to record dedup state for %s: %v", key, err)
	}
	return true
}

// isKnown reports whether (pi, topic) has ever been recorded, without
// mutating anything. Used for EON first-sight suppression: the caller must
// check isKnown before changed's Set call updates the table.
func (e *Engine) isKnown(ctx context.Context, pi, topic string) bool {
	ok, err := e.kv.Has(ctx, dedupKey(pi, topic))
	if err != nil {
		logging.Errorf("rules: failed to check dedup state for %s/%s: %v", pi, topic, err)
		return false
	}
	return ok
}
