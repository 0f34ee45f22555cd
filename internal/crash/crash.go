/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, an autosave of the active
// session and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"chatquest/internal/config"
	applog "chatquest/internal/log"
	"chatquest/internal/telemetry"
	"chatquest/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Autosaver persists whatever is in flight. session.Session implements it.
type Autosaver interface {
	Autosave() error
}

// Slot holds the currently active Autosaver. It is itself an Autosaver, so main can
// install recovery before any session exists.
type Slot struct {
	mu sync.Mutex
	a  Autosaver
}

// Set replaces the active Autosaver; nil clears it.
func (s *Slot) Set(a Autosaver) {
	s.mu.Lock()
	s.a = a
	s.mu.Unlock()
}

func (s *Slot) Autosave() error {
	s.mu.Lock()
	a := s.a
	s.mu.Unlock()
	if a == nil {
		return nil
	}
	return a.Autosave()
}

// Recover captures a panic, logs it with the stack, writes a report file, autosaves
// through a (if non-nil) and exits with code 2.
//
// Usage: defer crash.Recover(slot)
func Recover(a Autosaver) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if a != nil {
		if err := a.Autosave(); err != nil {
			l.Error("autosave failed", slog.Any("err", err))
		} else {
			l.Info("session autosaved")
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func reportDir() string {
	if dir, err := config.DataDir(); err == nil {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir
		}
	}
	return os.TempDir()
}

func writeReport(panicVal any, stack []byte) (string, error) {
	now := time.Now()
	path := filepath.Join(reportDir(), fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Chat Quest Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.Default().UploadCrash(buf.Bytes())
	return path, nil
}
