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

package rds_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubalainen/rds-supervisor/internal/rds"
)

func TestParseGroupDecodesKnownFields(t *testing.T) {
	t.Parallel()
	line := []byte(`{"pi":"C201","ta":true,"tp":true,"prog_type":"Varied","ps":"TRAFFIC ","radiotext":"Accident on E4","timestamp":"2026-07-31T12:00:00"}`)

	g, err := rds.ParseGroup(line)
	require.NoError(t, err)
	require.NotNil(t, g.PI)
	assert.Equal(t, "C201", *g.PI)
	require.NotNil(t, g.TA)
	assert.True(t, *g.TA)
	require.NotNil(t, g.PS)
	assert.Equal(t, "TRAFFIC ", *g.PS)
	require.NotNil(t, g.RadioText)
	assert.Equal(t, "Accident on E4", *g.RadioText)
	assert.Equal(t, "2026-07-31T12:00:00", g.TimestampOrNow())
}

func TestParseGroupIgnoresUnknownFields(t *testing.T) {
	t.Parallel()
	line := []byte(`{"pi":"C201","some_future_field":42}`)

	g, err := rds.ParseGroup(line)
	require.NoError(t, err)
	require.NotNil(t, g.PI)
	assert.Equal(t, "C201", *g.PI)
}

func TestParseGroupRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	_, err := rds.ParseGroup([]byte(`{not json`))
	assert.Error(t, err)
}

func TestTimestampOrNowFallsBackWhenAbsent(t *testing.T) {
	t.Parallel()
	g := rds.DecodedGroup{}
	ts := g.TimestampOrNow()
	assert.NotEmpty(t, ts)
	assert.Len(t, ts, len("2006-01-02T15:04:05"))
}
