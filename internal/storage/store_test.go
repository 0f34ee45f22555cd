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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chatquest/internal/engine"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DBFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("schema = %d, want %d", v, schemaVersion)
	}
	var cnt int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_scenarios_position'`).Scan(&cnt); err != nil {
		t.Fatalf("query index: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected position index after migrations")
	}
}

func TestMigrationFromV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), DBFileName)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", filepath.ToSlash(path)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, q := range []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version VALUES(1, 1, 'old', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z');`,
		`CREATE TABLE scenarios (id TEXT PRIMARY KEY, title TEXT NOT NULL, is_demo INTEGER NOT NULL DEFAULT 0, position INTEGER NOT NULL, source TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO scenarios VALUES('old', 'Old one', 0, 0, 'src', '2025-01-01T00:00:00Z');`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1: %v (%s)", err, q)
		}
	}
	_ = db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if v, _ := s.SchemaVersion(ctx); v != 2 {
		t.Fatalf("schema after migration = %d", v)
	}
	list, err := s.Scenarios(ctx)
	if err != nil || len(list) != 1 || list[0].Title != "Old one" {
		t.Fatalf("existing rows lost: %+v, %v", list, err)
	}
}

func TestOpenOrRecoverCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DBFileName)
	if err := os.WriteFile(path, []byte("THIS IS NOT SQLITE AT ALL, JUST JUNK BYTES"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	s, recovered, err := OpenOrRecover(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenOrRecover: %v", err)
	}
	defer s.Close()
	if !recovered {
		t.Fatalf("expected recovery")
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "backups"))
	if len(entries) == 0 {
		t.Fatalf("expected a backup of the corrupt file")
	}
	if err := s.SaveScenario(context.Background(), Scenario{ID: "x", Title: "X"}, "src"); err != nil {
		t.Fatalf("store unusable after recovery: %v", err)
	}

	s2, recovered, err := OpenOrRecover(context.Background(), filepath.Join(dir, "healthy.sqlite"))
	if err != nil || recovered {
		t.Fatalf("healthy open: recovered=%v err=%v", recovered, err)
	}
	_ = s2.Close()
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	if got := pg.rebind(`SELECT a FROM t WHERE x = ? AND y = ?`); got != `SELECT a FROM t WHERE x = $1 AND y = $2` {
		t.Fatalf("rebind = %q", got)
	}
	lite := &Store{dialect: dialectSQLite}
	if got := lite.rebind(`x = ?`); got != `x = ?` {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}

// TestPostgresRoundTrip runs only when CQ_TEST_PG_DSN points at a disposable database.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("CQ_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CQ_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer s.Close()
	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if err := s.SaveScenario(ctx, Scenario{ID: "pg", Title: "PG"}, "src"); err != nil {
		t.Fatalf("SaveScenario: %v", err)
	}
	st := engine.State{CurrentKnot: "start", Variables: map[string]any{}, DisplayedMessages: []engine.Message{{Speaker: "a", Text: "hi"}}}
	if err := s.SaveProgress(ctx, "pg", st); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	got, ok, err := s.LoadProgress(ctx, "pg")
	if err != nil || !ok || got.DisplayedMessages[0].Text != "hi" {
		t.Fatalf("LoadProgress = %+v %v %v", got, ok, err)
	}
}
