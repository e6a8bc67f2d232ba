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

package tuner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/tuner"
)

func writeProbeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestResolveDeviceEmptySerialReturnsFallbackWithoutProbing(t *testing.T) {
	t.Parallel()
	idx := tuner.ResolveDevice(context.Background(), "/no/such/probe-binary", "", 2)
	assert.Equal(t, 2, idx)
}

func TestResolveDeviceFailedProbeReturnsFallback(t *testing.T) {
	t.Parallel()
	idx := tuner.ResolveDevice(context.Background(), "/no/such/probe-binary", "00000001", 3)
	assert.Equal(t, 3, idx)
}

func TestResolveDeviceMatchesSerialFromProbeOutput(t *testing.T) {
	t.Parallel()
	script := writeProbeScript(t, "echo '0: Realtek, SN: 00000001'\necho '1: Realtek, SN: 00000002'\n")

	idx := tuner.ResolveDevice(context.Background(), script, "00000002", 9)
	assert.Equal(t, 1, idx)
}

func TestResolveDeviceFallsBackWhenSerialNotFound(t *testing.T) {
	t.Parallel()
	script := writeProbeScript(t, "echo '0: Realtek, SN: 00000001'\n")

	idx := tuner.ResolveDevice(context.Background(), script, "NOPE", 7)
	assert.Equal(t, 7, idx)
}
