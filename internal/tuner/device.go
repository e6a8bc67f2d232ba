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

package tuner

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/tubalainen/rds-supervisor/internal/logging"
)

var deviceLineRe = regexp.MustCompile(`(?i)^\s*(\d+):\s*.*,\s*SN:\s*(.+?)\s*$`)

// ResolveDevice shells out to probeCommand and parses its device-listing
// output for a line naming serial, returning the matching device index.
// If serial is empty, the probe fails, or no line matches, fallbackIndex is
// returned and a warning is logged.
func ResolveDevice(ctx context.Context, probeCommand, serial string, fallbackIndex int) int {
	if serial == "" {
		return fallbackIndex
	}

	out, err := exec.CommandContext(ctx, probeCommand).CombinedOutput()
	if err != nil {
		logging.Errorf("tuner: device probe %q failed, falling back to index %d: %v", probeCommand, fallbackIndex, err)
		return fallbackIndex
	}

	for _, line := range strings.Split(string(out), "\n") {
		m := deviceLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(m[2]), serial) {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return idx
	}

	logging.Errorf("tuner: no device matched serial %q, falling back to index %d", serial, fallbackIndex)
	return fallbackIndex
}
