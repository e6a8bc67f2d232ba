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

package recorder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

const (
	rawSampleRateHz  = 171_000
	rawChannels      = 1
	transcodeOutHz   = 16_000
	transcodeTimeout = 60 * time.Second
)

// defaultTranscode shells out to the configured converter to resample raw
// signed 16-bit little-endian PCM at rawSampleRateHz down to 16kHz, either
// as a WAV (opus=false) or a ~48kbit/s Ogg/Opus artifact (opus=true).
func defaultTranscode(converter string, raw []byte, outPath string, opus bool) error {
	args := []string{
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(rawSampleRateHz),
		"-ac", strconv.Itoa(rawChannels),
		"-i", "pipe:0",
		"-ar", strconv.Itoa(transcodeOutHz),
	}
	if opus {
		args = append(args, "-c:a", "libopus", "-b:a", "48k")
	}
	args = append(args, outPath)
	return runConverter(converter, raw, args)
}

func runConverter(converter string, raw []byte, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), transcodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, converter, args...)
	cmd.Stdin = bytes.NewReader(raw)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return fmt.Errorf("%s failed: %w: %s", converter, err, msg)
	}
	return nil
}
