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
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Scenario is an entry of the ordered scenario list.
type Scenario struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	IsDemo bool   `json:"isDemo"`
}

// language=SQL
const upsertScenarioSQL = `INSERT INTO scenarios(id, title, is_demo, position, source, updated_at)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM scenarios), ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	is_demo = excluded.is_demo,
	source = excluded.source,
	updated_at = excluded.updated_at`

// Scenarios lists scenario metadata in insertion order.
func (s *Store) Scenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := s.query(ctx, `SELECT id, title, is_demo FROM scenarios ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Scenario{}
	for rows.Next() {
		var sc Scenario
		var demo int
		if err := rows.Scan(&sc.ID, &sc.Title, &demo); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		sc.IsDemo = demo != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Scenario returns the metadata for id.
func (s *Store) Scenario(ctx context.Context, id string) (Scenario, bool, error) {
	sc := Scenario{ID: id}
	var demo int
	err := s.queryRow(ctx, `SELECT title, is_demo FROM scenarios WHERE id = ?`, id).Scan(&sc.Title, &demo)
	if errors.Is(err, sql.ErrNoRows) {
		return Scenario{}, false, nil
	}
	if err != nil {
		return Scenario{}, false, fmt.Errorf("get scenario: %w", err)
	}
	sc.IsDemo = demo != 0
	return sc, true, nil
}

// SaveScenario stores the source and metadata. A new id is appended to the end of the
// list; an existing one keeps its position.
func (s *Store) SaveScenario(ctx context.Context, sc Scenario, source string) error {
	if strings.TrimSpace(sc.ID) == "" {
		return errors.New("scenario id is required")
	}
	demo := 0
	if sc.IsDemo {
		demo = 1
	}
	if _, err := s.exec(ctx, upsertScenarioSQL, sc.ID, sc.Title, demo, source, s.stamp()); err != nil {
		s.log.Error("save scenario failed", slog.String("scenario", sc.ID), slog.Any("err", err))
		return fmt.Errorf("save scenario: %w", err)
	}
	return nil
}

// Source returns the raw script of id.
func (s *Store) Source(ctx context.Context, id string) (string, bool, error) {
	var src string
	err := s.queryRow(ctx, `SELECT source FROM scenarios WHERE id = ?`, id).Scan(&src)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get source: %w", err)
	}
	return src, true, nil
}

// DeleteScenario removes the scenario with its progress and revisions, and clears the
// current-scenario pointer when it points at id.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmts := []struct {
		q    string
		args []any
	}{
		{`DELETE FROM scenarios WHERE id = ?`, []any{id}},
		{`DELETE FROM progress WHERE scenario_id = ?`, []any{id}},
		{`DELETE FROM revisions WHERE scenario_id = ?`, []any{id}},
		{`DELETE FROM kv WHERE key = ? AND value = ?`, []any{keyCurrent, id}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, s.rebind(st.q), st.args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete scenario: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete scenario commit: %w", err)
	}
	s.log.Info("scenario deleted", slog.String("scenario", id))
	return nil
}

// Search returns scenarios whose title contains text, case-insensitively.
func (s *Store) Search(ctx context.Context, text string) ([]Scenario, error) {
	needle := likeContains(strings.ToLower(strings.TrimSpace(text)))
	rows, err := s.query(ctx, `SELECT id, title, is_demo FROM scenarios
WHERE lower(title) LIKE ? ESCAPE '\'
ORDER BY position, id`, needle)
	if err != nil {
		return nil, fmt.Errorf("search scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Scenario{}
	for rows.Next() {
		var sc Scenario
		var demo int
		if err := rows.Scan(&sc.ID, &sc.Title, &demo); err != nil {
			return nil, err
		}
		sc.IsDemo = demo != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}

// likeContains wraps s for a LIKE ... ESCAPE '\' containment match.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
