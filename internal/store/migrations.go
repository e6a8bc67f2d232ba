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
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrate runs the idempotent additive-column migrations on top of the
// baseline AutoMigrate of StationEvent. Every migration here corresponds to
// a column added after the table's initial release (audio_path,
// transcription, transcription_status, transcription_duration_sec); all
// four already exist on the StationEvent struct, so on a fresh database
// AutoMigrate creates them directly and each step below is a no-op.
func migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601010000_add_audio_path",
			Migrate: func(tx *gorm.DB) error {
				if tx.Migrator().HasTable(&StationEvent{}) && !tx.Migrator().HasColumn(&StationEvent{}, "AudioPath") {
					return tx.Migrator().AddColumn(&StationEvent{}, "AudioPath")
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
		{
			ID: "202601010100_add_transcription_columns",
			Migrate: func(tx *gorm.DB) error {
				if !tx.Migrator().HasTable(&StationEvent{}) {
					return nil
				}
				for _, field := range []string{"Transcription", "TranscriptionStatus", "TranscriptionDurationSec"} {
					if !tx.Migrator().HasColumn(&StationEvent{}, field) {
						if err := tx.Migrator().AddColumn(&StationEvent{}, field); err != nil {
							return err
						}
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
	})
	return m.Migrate()
}
