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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"

	"github.com/tubalainen/rds-supervisor/internal/config"
	"github.com/tubalainen/rds-supervisor/internal/kv"
	"github.com/tubalainen/rds-supervisor/internal/logging"
	"github.com/tubalainen/rds-supervisor/internal/metrics"
	"github.com/tubalainen/rds-supervisor/internal/pubsub"
	"github.com/tubalainen/rds-supervisor/internal/recorder"
	"github.com/tubalainen/rds-supervisor/internal/rules"
	"github.com/tubalainen/rds-supervisor/internal/status"
	"github.com/tubalainen/rds-supervisor/internal/store"
	"github.com/tubalainen/rds-supervisor/internal/tuner"
	"github.com/tubalainen/rds-supervisor/internal/txqueue"
	"github.com/tubalainen/rds-supervisor/internal/wsbroadcast"
)

const shutdownTimeout = 10 * time.Second

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rds-supervisor",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("rds-supervisor - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogger(cfg)

	m := metrics.NewMetrics()
	if err := metrics.CreateMetricsServer(cfg); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	st, err := store.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}

	closed, err := st.CloseStaleOnStartup()
	if err != nil {
		slog.Error("failed to close stale events on startup", "error", err)
	} else if closed > 0 {
		slog.Info("closed stale non-terminal events on startup", "count", closed)
	}

	kvStore, err := kv.MakeKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to key-value store: %w", err)
	}

	ps, err := pubsub.MakePubSub(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	queue := txqueue.NewQueue(cfg, m)
	queue.Start()

	engine := rules.NewEngine(cfg, st, ps, kvStore, m)

	stations, err := buildStations(cfg, st, queue, m)
	if err != nil {
		return fmt.Errorf("failed to build stations: %w", err)
	}

	tunerStations := make([]tuner.Station, len(stations))
	for i, s := range stations {
		tunerStations[i] = tuner.Station{Label: s.label, Frequency: s.frequency, Recorder: s.recorder}
	}
	pipeline := tuner.NewPipeline(cfg, engine, tunerStations, m)
	if err := pipeline.Start(ctx); err != nil {
		// A spawn failure leaves the pipeline in an error state; the event
		// store and web surface stay up and external supervision restarts
		// the process.
		slog.Error("failed to start tuner pipeline", "error", err)
	}

	hub := wsbroadcast.NewHub(ps, []string{"alert", "status"})
	webServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r)
	})}
	webAddr := fmt.Sprintf("%s:%d", cfg.Web.Bind, cfg.Web.Port)
	webListener, err := net.Listen("tcp", webAddr)
	if err != nil {
		return fmt.Errorf("failed to bind web server to %s: %w", webAddr, err)
	}
	go func() {
		if err := webServer.Serve(webListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web server exited", "error", err)
		}
	}()

	statusCtx, cancelStatus := context.WithCancel(ctx)
	go status.PublishLoop(statusCtx, time.Duration(cfg.StatusIntervalSec)*time.Second, engine, queue, pipeline, ps)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		cancelStatus()
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			purgeOldEvents(st, cfg.EventRetentionDays, cfg.Recorder.OutputDir)
		}),
	)
	if err != nil {
		slog.Error("failed to schedule retention purge", "error", err)
	}
	scheduler.Start()

	stop := func(sig os.Signal) {
		slog.Error("shutting down due to signal", "signal", sig)
		cancelStatus()

		wg := new(sync.WaitGroup)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.StopJobs(); err != nil {
				slog.Error("failed to stop scheduler jobs", "error", err)
			}
			if err := scheduler.Shutdown(); err != nil {
				slog.Error("failed to stop scheduler", "error", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			pipeline.Stop()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			queue.Shutdown()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Close(); err != nil {
				slog.Error("failed to close web server", "error", err)
			}
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			wg.Wait()
		}()

		select {
		case <-done:
			if err := ps.Close(); err != nil {
				slog.Error("failed to close broker", "error", err)
			}
			if err := kvStore.Close(); err != nil {
				slog.Error("failed to close key-value store", "error", err)
			}
			slog.Info("shutdown completed")
			logging.Close()
			os.Exit(0)
		case <-time.After(shutdownTimeout):
			slog.Error("shutdown timed out")
			logging.Close()
			os.Exit(1)
		}
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	return nil
}

func setupLogger(cfg *config.Config) {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
}

type station struct {
	label     string
	frequency float64
	recorder  *recorder.Recorder
}

// buildStations constructs one recorder per configured frequency, sharing a
// single transcription-completion callback that writes results back to the
// event store.
func buildStations(cfg *config.Config, st *store.Store, queue *txqueue.Queue, m *metrics.Metrics) ([]station, error) {
	callback := func(eventID int64, text string, err error, durationSec float64) {
		txStatus := config.TranscriptionStatusDone
		if err != nil {
			txStatus = config.TranscriptionStatusError
		}
		if uErr := st.UpdateTranscription(eventID, text, txStatus, durationSec); uErr != nil {
			slog.Error("failed to record transcription", "event_id", eventID, "error", uErr)
		}
	}

	transcriptionEnabled := cfg.Transcription.Engine != config.TranscriptionEngineNone

	freqs, err := cfg.Tuner.StationFrequencies()
	if err != nil {
		return nil, err
	}
	stations := make([]station, len(freqs))
	for i, freq := range freqs {
		label := config.FormatFrequency(freq)
		rec := recorder.New(label, cfg.Recorder, transcriptionEnabled, st, queue, callback, m)
		stations[i] = station{label: label, frequency: freq, recorder: rec}
	}
	return stations, nil
}

// purgeOldEvents deletes event rows older than retentionDays and removes
// their audio artifacts from disk.
func purgeOldEvents(st *store.Store, retentionDays int, outputDir string) {
	paths, err := st.PurgeOlderThan(retentionDays)
	if err != nil {
		slog.Error("retention purge failed", "error", err)
		return
	}
	for _, base := range paths {
		for _, ext := range []string{".wav", ".ogg"} {
			full := base + ext
			if !filepath.IsAbs(full) {
				full = filepath.Join(outputDir, full)
			}
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				slog.Error("failed to remove purged audio artifact", "path", full, "error", err)
			}
		}
	}
	if len(paths) > 0 {
		slog.Info("retention purge removed audio artifacts", "count", len(paths))
	}
}
