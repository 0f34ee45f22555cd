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
	"fmt"
	"time"
)

// Revision is one saved version of a scenario source.
type Revision struct {
	TS     time.Time
	Source string
}

// AddRevision records source as a revision of scenario id.
func (s *Store) AddRevision(ctx context.Context, id, source string, ts time.Time) error {
	_, err := s.exec(ctx, `INSERT INTO revisions(scenario_id, ts, source) VALUES (?, ?, ?)`,
		id, ts.UTC().Format(time.RFC3339Nano), source)
	if err != nil {
		return fmt.Errorf("add revision: %w", err)
	}
	return nil
}

// Revisions returns up to limit most recent revisions of id, newest first.
func (s *Store) Revisions(ctx context.Context, id string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx, `SELECT ts, source FROM revisions WHERE scenario_id = ? ORDER BY ts DESC, id DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		var tsStr string
		var r Revision
		if err := rows.Scan(&tsStr, &r.Source); err != nil {
			return nil, err
		}
		r.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRevisions keeps the keepLast newest revisions of id and returns how many were deleted.
func (s *Store) PruneRevisions(ctx context.Context, id string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.exec(ctx, `DELETE FROM revisions WHERE scenario_id = ? AND id NOT IN (
	SELECT id FROM revisions WHERE scenario_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`, id, id, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}
