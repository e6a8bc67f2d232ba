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

package audiotee

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu        sync.Mutex
	recording bool
	fed       []byte
}

func (f *fakeRecorder) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeRecorder) Feed(chunk []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fed = append(f.fed, chunk...)
}

type nopCloseWriter struct {
	*bytes.Buffer
	closed bool
}

func (w *nopCloseWriter) Close() error {
	w.closed = true
	return nil
}

type erroringWriter struct{}

func (erroringWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
func (erroringWriter) Close() error              { return nil }

func TestTeeForwardsAndFeedsWhenRecording(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0x42}, chunkSize*3))
	dst := &nopCloseWriter{Buffer: &bytes.Buffer{}}
	rec := &fakeRecorder{recording: true}

	tee := New("test", src, dst, rec)
	tee.Run()

	assert.True(t, dst.closed, "dst must be closed on EOF")
	assert.Equal(t, chunkSize*3, dst.Len(), "every byte must reach the demodulator sink")
	assert.Equal(t, chunkSize*3, len(rec.fed), "every byte must reach the recorder while recording")
}

func TestTeeSkipsRecorderWhenNotRecording(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0x01}, chunkSize))
	dst := &nopCloseWriter{Buffer: &bytes.Buffer{}}
	rec := &fakeRecorder{recording: false}

	New("test", src, dst, rec).Run()

	assert.Empty(t, rec.fed)
}

func TestTeeStopsOnDeadDemodulatorSink(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0x01}, chunkSize*2))
	rec := &fakeRecorder{recording: true}

	tee := New("test", src, erroringWriter{}, rec)
	tee.Run()

	// A write failure to the demodulator sink stops the tee outright,
	// before any chunk reaches the recorder.
	require.Equal(t, 0, len(rec.fed))
}

var _ io.Reader = (*bytes.Reader)(nil)
