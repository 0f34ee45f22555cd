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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"chatquest/internal/engine"
)

// ErrCorruptProgress is returned by LoadProgress when the stored snapshot does not match
// the progress schema. Callers start a fresh session instead.
var ErrCorruptProgress = errors.New("saved progress is corrupt")

//go:embed progress.schema.json
var progressSchemaJSON []byte

var (
	progressSchemaOnce sync.Once
	progressSchema     *gojsonschema.Schema
	progressSchemaErr  error
)

func compiledProgressSchema() (*gojsonschema.Schema, error) {
	progressSchemaOnce.Do(func() {
		progressSchema, progressSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(progressSchemaJSON))
	})
	return progressSchema, progressSchemaErr
}

// ValidateProgress checks raw against the progress schema.
func ValidateProgress(raw []byte) error {
	schema, err := compiledProgressSchema()
	if err != nil {
		return fmt.Errorf("compile progress schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptProgress, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrCorruptProgress, strings.Join(msgs, "; "))
	}
	return nil
}

// SaveProgress stores st as the saved position of scenario id.
func (s *Store) SaveProgress(ctx context.Context, id string, st engine.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO progress(scenario_id, state, updated_at) VALUES (?, ?, ?)
ON CONFLICT(scenario_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		id, string(raw), s.stamp())
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// LoadProgress returns the saved position of scenario id. ok is false when none exists.
func (s *Store) LoadProgress(ctx context.Context, id string) (st engine.State, ok bool, err error) {
	var raw string
	err = s.queryRow(ctx, `SELECT state FROM progress WHERE scenario_id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.State{}, false, nil
	}
	if err != nil {
		return engine.State{}, false, fmt.Errorf("load progress: %w", err)
	}
	if err := ValidateProgress([]byte(raw)); err != nil {
		return engine.State{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return engine.State{}, false, fmt.Errorf("%w: %v", ErrCorruptProgress, err)
	}
	return st, true, nil
}

// DeleteProgress forgets the saved position of scenario id.
func (s *Store) DeleteProgress(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM progress WHERE scenario_id = ?`, id); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
