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
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/tubalainen/rds-supervisor/internal/audiotee"
	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/dsp"
	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/metrics"
	"github.com/tubalainen/rds-supervisor/internal/rds"
	"github.com/tubalainen/rds-supervisor/internal/rules"
)

const maxParseErrorLogs = 10

// Dispatcher is the subset of the rules engine a station reader thread
// needs. Satisfied by *rules.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, sc rules.StationContext, g rds.DecodedGroup)
}

// RecorderFeed is the subset of a station recorder the audio tee needs.
// Satisfied by *recorder.Recorder.
type RecorderFeed interface {
	IsRecording() bool
	Feed(chunk []byte)
}

// EngineRecorder is the subset of a station recorder the rules engine
// needs, used to satisfy rules.Recorder via the same concrete recorder.
type EngineRecorder interface {
	Start(eventID int64)
	Stop() bool
}

// Station pairs one configured frequency with the recorder that captures
// its audio.
type Station struct {
	Label     string
	Frequency float64
	Recorder  interface {
		RecorderFeed
		EngineRecorder
	}
}

// Pipeline owns the tuner child process and, in the multi-station case,
// one demodulator child and one DSP pipeline per station. It is the
// component cmd/root.go starts and stops.
type Pipeline struct {
	cfg      *config.Config
	engine   Dispatcher
	metrics  *metrics.Metrics
	stations []Station

	tunerProc  *Process
	demodProcs []*Process
	spawnErr   atomic.Bool
}

// NewPipeline builds a Pipeline for the given stations, in configuration
// order (matching cfg.Tuner.Frequencies).
func NewPipeline(cfg *config.Config, engine Dispatcher, stations []Station, m *metrics.Metrics) *Pipeline {
	return &Pipeline{cfg: cfg, engine: engine, stations: stations, metrics: m}
}

// Start resolves the SDR device and spawns the tuner/demodulator children,
// choosing the single-station or multi-station wiring based on how many
// stations are configured.
func (p *Pipeline) Start(ctx context.Context) error {
	deviceIndex := ResolveDevice(ctx, p.cfg.Tuner.ProbeCommand, p.cfg.Tuner.DeviceSerial, p.cfg.Tuner.DeviceIndex)

	var err error
	if len(p.stations) == 1 {
		err = p.startSingleStation(ctx, deviceIndex)
	} else {
		err = p.startMultiStation(ctx, deviceIndex)
	}
	if err != nil {
		p.spawnErr.Store(true)
	}
	return err
}

// States reports each supervised child's lifecycle state, keyed "tuner" and
// "demodulator/<station label>", for the periodic status snapshot. A spawn
// failure shows up as an "error" entry for whichever child never started.
func (p *Pipeline) States() map[string]string {
	out := make(map[string]string)
	if p.tunerProc != nil {
		out["tuner"] = string(p.tunerProc.State())
	} else if p.spawnErr.Load() {
		out["tuner"] = string(StateError)
	}
	for i, d := range p.demodProcs {
		label := p.stations[i].Label
		out["demodulator/"+label] = string(d.State())
	}
	if p.spawnErr.Load() {
		for _, st := range p.stations[len(p.demodProcs):] {
			out["demodulator/"+st.Label] = string(StateError)
		}
	}
	return out
}

// Stop shuts down every child process, bounded by each Process's own
// interrupt/kill grace period.
func (p *Pipeline) Stop() {
	if p.tunerProc != nil {
		p.tunerProc.Stop()
	}
	for _, d := range p.demodProcs {
		d.Stop()
	}
}

func (p *Pipeline) tunerArgs(extra ...string) []string {
	args := append([]string{}, p.cfg.Tuner.CommandArgs...)
	args = append(args,
		"-g", strconv.Itoa(p.cfg.Tuner.Gain),
		"-p", strconv.Itoa(p.cfg.Tuner.PPMCorrection),
	)
	return append(args, extra...)
}

func (p *Pipeline) demodArgs() []string {
	args := append([]string{}, p.cfg.Tuner.DemodulatorArgs...)
	return append(args, "-r", "171000")
}

// startSingleStation is the degenerate one-station case: the tuner
// demodulates FM directly to 171kHz mono PCM, skipping the DSP channelizer
// entirely. The tee sits directly between the tuner's stdout and the
// demodulator's stdin.
func (p *Pipeline) startSingleStation(ctx context.Context, deviceIndex int) error {
	st := p.stations[0]
	freq := fmt.Sprintf("%.0f", st.Frequency)

	tunerArgs := p.tunerArgs("-f", freq, "-s", "171000", "-d", strconv.Itoa(deviceIndex))
	tunerProc, err := Spawn(ctx, p.cfg.Tuner.Command, tunerArgs)
	if err != nil {
		return fmt.Errorf("spawn tuner: %w", err)
	}
	p.tunerProc = tunerProc

	demodProc, err := Spawn(ctx, p.cfg.Tuner.DemodulatorCommand, p.demodArgs())
	if err != nil {
		return fmt.Errorf("spawn demodulator: %w", err)
	}
	p.demodProcs = []*Process{demodProc}

	tee := audiotee.New(st.Label, tunerProc.Stdout, demodProc.Stdin, st.Recorder)
	go tee.Run()

	go p.readDemodLines(ctx, st, demodProc.Stdout)
	return nil
}

// startMultiStation tunes the wideband IQ center covering every configured
// station and fans the channelizer's per-station PCM output through a tee
// to each station's own demodulator child and recorder.
func (p *Pipeline) startMultiStation(ctx context.Context, deviceIndex int) error {
	offsets := p.cfg.Tuner.Stations()
	if len(offsets) == 0 {
		return fmt.Errorf("no resolvable station frequencies configured")
	}
	center := offsets[0].Frequency - offsets[0].Offset

	tunerArgs := p.tunerArgs(
		"-f", fmt.Sprintf("%.0f", center),
		"-s", fmt.Sprintf("%.0f", p.cfg.Tuner.SampleRate),
		"-d", strconv.Itoa(deviceIndex),
		"-M", "raw",
	)
	tunerProc, err := Spawn(ctx, p.cfg.Tuner.Command, tunerArgs)
	if err != nil {
		return fmt.Errorf("spawn tuner: %w", err)
	}
	p.tunerProc = tunerProc

	specs := make([]dsp.StationSpec, 0, len(p.stations))
	for i, st := range p.stations {
		demodProc, err := Spawn(ctx, p.cfg.Tuner.DemodulatorCommand, p.demodArgs())
		if err != nil {
			return fmt.Errorf("spawn demodulator for %s: %w", st.Label, err)
		}
		p.demodProcs = append(p.demodProcs, demodProc)

		pr, pw := io.Pipe()
		specs = append(specs, dsp.StationSpec{Label: st.Label, OffsetHz: offsets[i].Offset, Sink: pw})

		tee := audiotee.New(st.Label, pr, demodProc.Stdin, st.Recorder)
		go tee.Run()

		go p.readDemodLines(ctx, st, demodProc.Stdout)
	}

	channelizer := dsp.NewChannelizer(tunerProc.Stdout, specs, p.metrics)
	go func() {
		if err := channelizer.Run(); err != nil {
			logging.Errorf("tuner: channelizer exited: %v", err)
		}
	}()

	return nil
}

// readDemodLines is the body of one dedicated demodulator-output reader
// goroutine: it scans newline-delimited JSON and dispatches each decoded
// group to the rules engine, counting and capping parse-error log lines.
func (p *Pipeline) readDemodLines(ctx context.Context, st Station, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	sc := rules.StationContext{
		Label:     st.Label,
		Frequency: config.FormatFrequency(st.Frequency),
		Recorder:  st.Recorder,
	}

	parseErrors := 0
	for scanner.Scan() {
		g, err := rds.ParseGroup(scanner.Bytes())
		if err != nil {
			parseErrors++
			if parseErrors <= maxParseErrorLogs {
				logging.Errorf("tuner[%s]: failed to parse demodulator output: %v", st.Label, err)
			}
			continue
		}
		p.engine.Dispatch(ctx, sc, g)
	}
}
