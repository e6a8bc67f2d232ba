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
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/tuner"
)

func TestSpawnRelaysStdoutAndReportsStoppedOnCleanExit(t *testing.T) {
	t.Parallel()
	p, err := tuner.Spawn(context.Background(), "sh", []string{"-c", "echo hello; echo world"})
	require.NoError(t, err)

	scanner := bufio.NewScanner(p.Stdout)
	require.True(t, scanner.Scan())
	assert.Equal(t, "hello", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "world", scanner.Text())

	require.Eventually(t, func() bool { return p.State() == tuner.StateStopped }, 2*time.Second, 10*time.Millisecond)
}

func TestSpawnReportsErrorStateOnNonZeroExit(t *testing.T) {
	t.Parallel()
	p, err := tuner.Spawn(context.Background(), "sh", []string{"-c", "exit 1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.State() == tuner.StateError }, 2*time.Second, 10*time.Millisecond)
}

func TestProcessStopTerminatesLongRunningChild(t *testing.T) {
	t.Parallel()
	p, err := tuner.Spawn(context.Background(), "sleep", []string{"30"})
	require.NoError(t, err)
	assert.Equal(t, tuner.StateRunning, p.State())

	start := time.Now()
	p.Stop()
	assert.Less(t, time.Since(start), 5*time.Second)

	// A signal-killed child makes Wait report an error, but a requested
	// Stop is the clean-shutdown path, never an error exit.
	assert.Equal(t, tuner.StateStopped, p.State())
}
