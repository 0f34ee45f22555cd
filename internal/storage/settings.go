/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

const (
	keySettings = "settings"
	keyCurrent  = "current"
)

// Settings are user preferences. Zero fields are unset.
type Settings struct {
	Language         string `json:"language,omitempty"`
	Theme            string `json:"theme,omitempty"`
	TypingMinDelayMs int    `json:"typingMinDelayMs,omitempty"`
	TypingMaxDelayMs int    `json:"typingMaxDelayMs,omitempty"`
}

// Merge returns s with every non-zero field of patch applied.
func (s Settings) Merge(patch Settings) Settings {
	if patch.Language != "" {
		s.Language = patch.Language
	}
	if patch.Theme != "" {
		s.Theme = patch.Theme
	}
	if patch.TypingMinDelayMs != 0 {
		s.TypingMinDelayMs = patch.TypingMinDelayMs
	}
	if patch.TypingMaxDelayMs != 0 {
		s.TypingMaxDelayMs = patch.TypingMaxDelayMs
	}
	return s
}

// Settings returns the stored settings; an unreadable record yields defaults.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	raw, ok, err := s.getKV(ctx, keySettings)
	if err != nil || !ok {
		return Settings{}, err
	}
	var st Settings
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.log.Warn("settings record unreadable, using defaults", slog.Any("err", err))
		return Settings{}, nil
	}
	return st, nil
}

// SaveSettings merges patch into the stored settings and returns the result.
func (s *Store) SaveSettings(ctx context.Context, patch Settings) (Settings, error) {
	cur, err := s.Settings(ctx)
	if err != nil {
		return Settings{}, err
	}
	merged := cur.Merge(patch)
	raw, err := json.Marshal(merged)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.putKV(ctx, keySettings, string(raw)); err != nil {
		return Settings{}, err
	}
	return merged, nil
}

// CurrentScenario returns the id of the scenario last opened, or "".
func (s *Store) CurrentScenario(ctx context.Context) (string, error) {
	v, _, err := s.getKV(ctx, keyCurrent)
	return v, err
}

// SetCurrentScenario records id as the open scenario; "" clears the pointer.
func (s *Store) SetCurrentScenario(ctx context.Context, id string) error {
	if id == "" {
		_, err := s.exec(ctx, `DELETE FROM kv WHERE key = ?`, keyCurrent)
		return err
	}
	return s.putKV(ctx, keyCurrent, id)
}

// ClearAll deletes every scenario, progress record, revision and setting.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, table := range []string{"scenarios", "progress", "revisions", "kv"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear commit: %w", err)
	}
	s.log.Info("all data cleared")
	return nil
}

func (s *Store) getKV(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.queryRow(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) putKV(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, `INSERT INTO kv(key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
