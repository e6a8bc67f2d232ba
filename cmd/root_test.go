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

package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/store"
	"github.com/tubalainen/rds-supervisor/internal/txqueue"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(config.Database{Driver: config.DatabaseDriverSQLite, Database: dbPath})
	require.NoError(t, err)
	return st
}

func TestBuildStationsOnePerFrequency(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	cfg := &config.Config{
		Tuner: config.Tuner{Frequencies: "103.5M,97.7M"},
		Recorder: config.Recorder{
			MaxRecordingSec: 600,
			OutputDir:       t.TempDir(),
		},
		Transcription: config.Transcription{Engine: config.TranscriptionEngineNone},
	}
	queue := txqueue.NewQueue(cfg, nil)

	stations, err := buildStations(cfg, st, queue, nil)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	require.Equal(t, "103.5M", stations[0].label)
	require.Equal(t, "97.7M", stations[1].label)
	require.NotNil(t, stations[0].recorder)
	require.NotNil(t, stations[1].recorder)
}

func TestPurgeOldEventsRemovesNothingWhenStoreEmpty(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	// Should not panic or log spuriously when there is nothing to purge.
	purgeOldEvents(st, 30, t.TempDir())
}
