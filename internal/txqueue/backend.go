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

package txqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tubalainen/rds-supervisor/internal/config"
)

var errTranscriptionDisabled = errors.New("transcription is disabled")

// Backend is the opaque speech-to-text engine. The queue never inspects its
// internals; it only measures wall-clock time around the call.
type Backend interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

func makeBackend(cfg config.Transcription) (Backend, error) {
	switch cfg.Engine {
	case config.TranscriptionEngineLocal:
		return &localBackend{cfg: cfg}, nil
	case config.TranscriptionEngineRemote:
		if cfg.RemoteEndpoint == "" {
			return nil, errors.New("transcription engine is remote but no remote endpoint is configured")
		}
		return &remoteBackend{cfg: cfg, client: &http.Client{}}, nil
	default:
		return nil, errTranscriptionDisabled
	}
}

// localBackend shells out to an external transcription CLI the same way
// internal/tuner shells out to the SDR tooling: the model runtime is an
// opaque collaborator, never linked into this process.
type localBackend struct {
	cfg config.Transcription
}

func (b *localBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	args := []string{
		"--model", b.cfg.LocalModel,
		"--language", b.cfg.Language,
		"--output-format", "txt",
	}
	if b.cfg.LocalModelPath != "" {
		args = append(args, "--model-path", b.cfg.LocalModelPath)
	}
	args = append(args, audioPath)

	cmd := exec.CommandContext(ctx, b.cfg.LocalCommand, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("local transcription command failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// remoteBackend posts the audio file to a Whisper-ASR-compatible HTTP
// endpoint, mirroring the original's "/asr" multipart upload contract.
type remoteBackend struct {
	cfg    config.Transcription
	client *http.Client
}

type remoteASRResponse struct {
	Text string `json:"text"`
}

func (b *remoteBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file %s: %w", audioPath, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	endpoint := strings.TrimRight(b.cfg.RemoteEndpoint, "/") + "/asr"
	query := url.Values{
		"encode":   {"true"},
		"task":     {"transcribe"},
		"language": {b.cfg.Language},
		"output":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+query.Encode(), &body)
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote transcription server returned status %d", resp.StatusCode)
	}

	var parsed remoteASRResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse transcription response: %w", err)
	}

	return strings.TrimSpace(parsed.Text), nil
}
