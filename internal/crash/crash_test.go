/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatquest/internal/config"
)

type fakeSaver struct {
	calls int
	err   error
}

func (f *fakeSaver) Autosave() error { f.calls++; return f.err }

func withDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfig, filepath.Join(dir, "config.yaml"))
	t.Setenv(config.EnvTelemetryOptIn, "")
	return dir
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func TestWriteReportCreatesFileInDataDir(t *testing.T) {
	dir := withDataDir(t)
	path, err := writeReport("boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report written to %s, want %s", path, dir)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Chat Quest Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("unexpected report: %s", s)
	}
}

func TestRecoverAutosavesAndExits(t *testing.T) {
	dir := withDataDir(t)
	silenceStderr(t)

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	saver := &fakeSaver{}
	slot := &Slot{}
	slot.Set(saver)

	func() {
		defer Recover(slot)
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if saver.calls != 1 {
		t.Fatalf("expected one autosave, got %d", saver.calls)
	}
	files, _ := os.ReadDir(dir)
	found := false
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected crash report under %s", dir)
	}
}

func TestRecoverAutosaveFailureStillExits(t *testing.T) {
	withDataDir(t)
	silenceStderr(t)

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	saver := &fakeSaver{err: errors.New("disk full")}
	func() {
		defer Recover(saver)
		panic("boom")
	}()
	if code != 2 || saver.calls != 1 {
		t.Fatalf("code=%d calls=%d", code, saver.calls)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()

	func() { defer Recover(nil) }()
	if called {
		t.Fatalf("exit called without panic")
	}
}

func TestEmptySlot(t *testing.T) {
	var s Slot
	if err := s.Autosave(); err != nil {
		t.Fatalf("empty slot autosave: %v", err)
	}
}
