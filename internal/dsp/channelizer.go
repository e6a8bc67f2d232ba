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

package dsp

import (
	"io"
	"time"

	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/metrics"
)

// StationSpec names one channelizer output: its offset from the center
// frequency and a label used for metrics and log lines.
type StationSpec struct {
	Label    string
	OffsetHz float64
	Sink     io.Writer
}

// Channelizer owns every per-station DSP pipeline and the tuner's raw IQ
// byte-stream source. It is driven by a single dedicated goroutine (Run),
// matching the one-thread ownership model in the data model.
type Channelizer struct {
	source   io.Reader
	stations []*StationPipeline
	labels   []string
	metrics  *metrics.Metrics
	reported []bool
}

// NewChannelizer builds a channelizer reading raw IQ bytes from source and
// fanning out to one StationPipeline per spec, in configuration order.
func NewChannelizer(source io.Reader, specs []StationSpec, m *metrics.Metrics) *Channelizer {
	c := &Channelizer{source: source, metrics: m}
	for _, s := range specs {
		c.stations = append(c.stations, NewStationPipeline(s.OffsetHz, s.Sink))
		c.labels = append(c.labels, s.Label)
	}
	c.reported = make([]bool, len(c.stations))
	return c
}

// Run reads exactly one IQ block at a time until EOF, converting each to a
// complex vector and driving every station pipeline in configuration order.
// It returns when the source is exhausted or reports a non-EOF error.
func (c *Channelizer) Run() error {
	raw := make([]byte, Block*2)
	z := make([]complex128, Block)

	for {
		_, err := io.ReadFull(c.source, raw)
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF {
			// Short read: discard the partial block and keep going.
			for i := range c.labels {
				if c.metrics != nil {
					c.metrics.RecordChannelizerDrop(c.labels[i])
				}
			}
			continue
		}
		if err != nil {
			return err
		}

		for i := 0; i < Block; i++ {
			iv := (float64(raw[2*i]) - 127.5) / 127.5
			qv := (float64(raw[2*i+1]) - 127.5) / 127.5
			z[i] = complex(iv, qv)
		}

		for i, st := range c.stations {
			start := time.Now()
			st.Process(z)
			if c.metrics != nil {
				c.metrics.RecordChannelizerBlock(c.labels[i])
				c.metrics.RecordDSPDuration(c.labels[i], time.Since(start).Seconds())
			}
			if st.Dead() && !c.reported[i] {
				c.reported[i] = true
				logging.Errorf("station %s sink closed, dropping further output", c.labels[i])
			}
		}
	}
}
