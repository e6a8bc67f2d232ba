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

package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tubalainen/rds-supervisor/internal/config"
)

const maxQueryLimit = 200

const timeLayout = "2006-01-02T15:04:05"

// Store is the durable event log. All writes are serialized by mu (one
// GORM handle, one logical writer); reads proceed concurrently.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// New opens the configured database driver, runs the baseline AutoMigrate
// plus the additive-column migrations, and returns a ready Store.
func New(cfg config.Database) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(cfg.Database)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&StationEvent{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// InsertEvent creates a new event row and returns its assigned id.
// CreatedAt is assigned by the database (autoCreateTime); StartedAt is the
// caller-supplied ISO-8601 timestamp.
func (s *Store) InsertEvent(e *StationEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Create(e).Error; err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return e.ID, nil
}

// UpdateRadiotext sets state=update and replaces the RadioText sequence.
func (s *Store) UpdateRadiotext(id int64, radiotext RadiotextList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&StationEvent{}).Where("id = ?", id).
		Updates(map[string]any{"state": StateUpdate, "radiotext": radiotext}).Error
}

// EndEvent atomically finalizes an event: sets state=end, ended_at,
// duration_sec, and optionally replaces radiotext/data if non-nil.
func (s *Store) EndEvent(id int64, endedAt string, durationSec int, radiotext RadiotextList, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := map[string]any{
		"state":        StateEnd,
		"ended_at":     endedAt,
		"duration_sec": durationSec,
	}
	if radiotext != nil {
		updates["radiotext"] = radiotext
	}
	if data != nil {
		updates["data"] = data
	}
	return s.db.Model(&StationEvent{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateAudio sets the event's on-disk audio artifact path.
func (s *Store) UpdateAudio(eventID int64, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&StationEvent{}).Where("id = ?", eventID).Update("audio_path", path).Error
}

// UpdateTranscriptionStatus sets (or clears, if status is nil) an event's
// transcription_status column.
func (s *Store) UpdateTranscriptionStatus(eventID int64, status *config.TranscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&StationEvent{}).Where("id = ?", eventID).Update("transcription_status", status).Error
}

// UpdateTranscription records a completed (or failed) transcription job's
// result: text, terminal status, and the time the backend call took.
func (s *Store) UpdateTranscription(eventID int64, text string, status config.TranscriptionStatus, durationSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := map[string]any{
		"transcription_status":       status,
		"transcription_duration_sec": durationSec,
	}
	if status == config.TranscriptionStatusDone {
		updates["transcription"] = text
	}
	return s.db.Model(&StationEvent{}).Where("id = ?", eventID).Updates(updates).Error
}

// Query returns a page of events, optionally filtered by type and a "since"
// ISO-8601 lower bound, ordered by created_at descending, plus the total
// row count for the unfiltered-by-page query. limit is clamped to
// maxQueryLimit.
func (s *Store) Query(typeFilter *config.EventType, since string, limit, offset int) ([]StationEvent, int64, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	base := s.db.Model(&StationEvent{})
	if typeFilter != nil {
		base = base.Where("type = ?", *typeFilter)
	}
	if since != "" {
		base = base.Where("created_at >= ?", since)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	var rows []StationEvent
	err := base.Session(&gorm.Session{}).Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	return rows, total, nil
}

// GetActive returns every event in a non-terminal state.
func (s *Store) GetActive() ([]StationEvent, error) {
	var rows []StationEvent
	err := s.db.Where("state IN ?", []State{StateStart, StateUpdate, StateActive}).
		Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get active events: %w", err)
	}
	return rows, nil
}

// GetActiveTraffic returns the in-progress traffic event for a PI, if any.
func (s *Store) GetActiveTraffic(pi string) (*StationEvent, error) {
	var row StationEvent
	err := s.db.Where("pi = ? AND type = ? AND state IN ?", pi, config.EventTypeTraffic, []State{StateStart, StateUpdate}).
		Order("created_at DESC").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get active traffic: %w", err)
	}
	return &row, nil
}

// CloseStaleOnStartup forcibly ends any event left in a non-terminal
// state across a restart. Returns the number of rows closed.
func (s *Store) CloseStaleOnStartup() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(timeLayout)
	result := s.db.Model(&StationEvent{}).
		Where("state IN ?", []State{StateStart, StateUpdate, StateActive}).
		Updates(map[string]any{"state": StateEnd, "ended_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("close stale events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeOlderThan deletes every event created before the cutoff (now minus
// days) and returns the audio_path values of the deleted rows with the
// ".ogg" extension removed, so the caller can remove the corresponding
// on-disk Ogg/WAV artifacts.
func (s *Store) PurgeOlderThan(days int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var rows []StationEvent
	if err := s.db.Where("created_at < ?", cutoff).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find purge candidates: %w", err)
	}

	var paths []string
	for _, r := range rows {
		if r.AudioPath != nil && *r.AudioPath != "" {
			paths = append(paths, strings.TrimSuffix(*r.AudioPath, ".ogg"))
		}
	}

	if err := s.db.Where("created_at < ?", cutoff).Delete(&StationEvent{}).Error; err != nil {
		return nil, fmt.Errorf("purge events: %w", err)
	}
	return paths, nil
}

// DeleteAll removes every event row and returns the count deleted.
func (s *Store) DeleteAll() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Where("1 = 1").Delete(&StationEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete all events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes a single event by id, returning whether a row was found.
func (s *Store) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Where("id = ?", id).Delete(&StationEvent{})
	if result.Error != nil {
		return false, fmt.Errorf("delete event %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
