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

// Package logging provides the access/error channel-relay loggers used
// outside the structured slog path, namely for relaying raw tuner and
// demodulator child-process stderr lines without contending with the main
// structured logger's handler. Messages are queued on a bounded channel and
// written by a background goroutine, so a hot caller (the channelizer, a
// stderr relay) never blocks on file I/O.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// LogType selects one of the two relay streams.
type LogType string

const (
	AccessType LogType = "access"
	ErrorType  LogType = "error"

	maxInFlightLogs = 200
	logDir          = "/var/log/rds-supervisor"
)

// Logger is one buffered relay stream backed by a file (plus stderr for the
// error stream).
type Logger struct {
	logger  *log.Logger
	file    *os.File
	channel chan string
	done    chan struct{}
}

var (
	accessOnce sync.Once //nolint:golint,gochecknoglobals
	errorOnce  sync.Once //nolint:golint,gochecknoglobals
	accessLog  *Logger   //nolint:golint,gochecknoglobals
	errorLog   *Logger   //nolint:golint,gochecknoglobals
)

// GetLogger returns the lazily-created relay stream for logType.
func GetLogger(logType LogType) *Logger {
	switch logType {
	case AccessType:
		accessOnce.Do(func() { accessLog = createLogger(AccessType) })
		return accessLog
	case ErrorType:
		errorOnce.Do(func() { errorLog = createLogger(ErrorType) })
		return errorLog
	default:
		panic(fmt.Sprintf("unknown log type %q", logType))
	}
}

// openLogFile prefers the system log directory and falls back to a file in
// the working directory when the directory cannot be created or written
// (non-root runs, macOS, Windows).
func openLogFile(logType LogType) *os.File {
	name := fmt.Sprintf("rds-supervisor.%s.log", logType)

	if runtime.GOOS == "linux" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(logDir, name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o664)
			if err == nil {
				return f
			}
		}
	}

	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o664)
	if err != nil {
		log.Fatalf("failed to create log file %s: %v", name, err)
	}
	return f
}

func createLogger(logType LogType) *Logger {
	file := openLogFile(logType)

	var w io.Writer = file
	if logType == ErrorType {
		w = io.MultiWriter(os.Stderr, file)
	}

	l := &Logger{
		logger:  log.New(w, "", log.LstdFlags),
		file:    file,
		channel: make(chan string, maxInFlightLogs),
		done:    make(chan struct{}),
	}
	go l.relay()
	return l
}

func (l *Logger) relay() {
	defer close(l.done)
	for msg := range l.channel {
		if msg != "" {
			l.logger.Print(msg)
		}
	}
}

func (l *Logger) send(msg string) {
	// Drop rather than block when the relay is saturated; a stalled log
	// file must never back-propagate into the DSP or tee threads.
	select {
	case l.channel <- msg:
	default:
	}
}

func Error(msg string) {
	GetLogger(ErrorType).send(fmt.Sprintf("%s: %s", callerPrefix(), msg))
}

func Errorf(format string, args ...any) {
	GetLogger(ErrorType).send(fmt.Sprintf("%s: %s", callerPrefix(), fmt.Sprintf(format, args...)))
}

func Log(msg string) {
	GetLogger(AccessType).send(fmt.Sprintf("%s: %s", callerPrefix(), msg))
}

func Logf(format string, args ...any) {
	GetLogger(AccessType).send(fmt.Sprintf("%s: %s", callerPrefix(), fmt.Sprintf(format, args...)))
}

// callerPrefix names the logging call site, module-path trimmed.
func callerPrefix() string {
	const skip = 2 // callerPrefix, exported func, caller
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	name := strings.TrimPrefix(
		runtime.FuncForPC(pc).Name(), "github.com/tubalainen/rds-supervisor/",
	)
	return fmt.Sprintf("[%s@%s:%d]", name, filepath.Base(file), line)
}

// Close flushes and stops whichever relay streams were actually created.
func Close() {
	for _, l := range []*Logger{accessLog, errorLog} {
		if l == nil {
			continue
		}
		close(l.channel)
		<-l.done
		_ = l.file.Close()
	}
}
