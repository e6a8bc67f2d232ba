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

// Package audiotee splits one station's demodulated PCM stream in two: a
// copy to the demodulator's stdin and, while a capture is active, a copy
// to that station's recorder. It never locks; the recorder's own lock is
// the sole authority over feed() consistency.
package audiotee

import (
	"io"

	"github.com/tubalainen/rds-supervisor/internal/logging"
)

// chunkSize matches 8192 bytes, ~24ms of 171kHz mono 16-bit PCM.
const chunkSize = 8192

// Recorder is the subset of the station recorder's interface a Tee needs.
// Satisfied by *recorder.Recorder.
type Recorder interface {
	IsRecording() bool
	Feed(chunk []byte)
}

// Tee reads PCM from src, writes every chunk to dst, and forwards a copy
// to rec whenever rec reports an active capture. Run is intended to be the
// entire body of a dedicated goroutine, one per station.
type Tee struct {
	label string
	src   io.Reader
	dst   io.WriteCloser
	rec   Recorder
}

// New builds a tee for one station. label is used only for log lines.
func New(label string, src io.Reader, dst io.WriteCloser, rec Recorder) *Tee {
	return &Tee{label: label, src: src, dst: dst, rec: rec}
}

// Run blocks until src reaches EOF or a write to dst fails, then closes
// dst and returns. A broken demodulator sink stops this station's stream;
// the recorder side never keeps a tee alive on its own.
func (t *Tee) Run() {
	defer func() {
		_ = t.dst.Close()
		logging.Logf("audiotee[%s]: stream ended", t.label)
	}()

	buf := make([]byte, chunkSize)

	for {
		n, err := t.src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := t.dst.Write(chunk); werr != nil {
				logging.Errorf("audiotee[%s]: demodulator sink broken, stopping: %v", t.label, werr)
				return
			}
			if t.rec != nil && t.rec.IsRecording() {
				t.rec.Feed(chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				logging.Errorf("audiotee[%s]: read error: %v", t.label, err)
			}
			return
		}
	}
}
