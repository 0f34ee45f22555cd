/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"os"
	"strings"
	"testing"
	"time"
)

func TestInitWritesJSONFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "cq.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Console: &console})
	t.Cleanup(func() { Init(Options{Console: &bytes.Buffer{}}) })

	l := WithScenario(WithOperation(WithComponent("engine"), "choose"), "demo")
	l.Info("choice made", slog.Int("index", 1))

	time.Sleep(20 * time.Millisecond)
	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines in file")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for k, want := range map[string]any{
		"app": "chatquest", "component": "engine", "op": "choose", "scenario": "demo", "msg": "choice made",
	} {
		if m[k] != want {
			t.Fatalf("%s = %v, want %v", k, m[k], want)
		}
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if !strings.Contains(console.String(), `"msg":"choice made"`) {
		t.Fatalf("console did not receive json record: %q", console.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "yes")
	t.Setenv(EnvFile, "/tmp/x.log")
	o := FromEnv()
	if o.Level != "warn" || o.Format != "json" || !o.AddSource || o.File != "/tmp/x.log" {
		t.Fatalf("unexpected options: %+v", o)
	}

	t.Setenv(EnvLevel, "")
	t.Setenv(EnvFormat, "")
	t.Setenv(EnvSource, "0")
	o = FromEnv()
	if o.Level != "info" || o.Format != "console" || o.AddSource {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrettyHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Console: &buf})
	t.Cleanup(func() { Init(Options{Console: &bytes.Buffer{}}) })

	l := WithComponent("store")
	l.Debug("hidden")
	l.WithGroup("grp").Info("saved", slog.Int("n", 42), slog.String("title", "two words"))
	l.Error("boom", slog.Float64("pi", 3.14))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "INF [store] saved grp.n=42 grp.title=\"two words\"") {
		t.Fatalf("unexpected info line: %q", lines[0])
	}
	if strings.Contains(lines[0], "app=") {
		t.Fatalf("static attrs should not be printed: %q", lines[0])
	}
	if !strings.Contains(lines[1], "ERR [store] boom pi=3.14") {
		t.Fatalf("unexpected error line: %q", lines[1])
	}
}

func TestPrettyHandlerSource(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Console: &buf, AddSource: true})
	t.Cleanup(func() { Init(Options{Console: &bytes.Buffer{}}) })

	WithComponent("store").Info("saved")
	if !strings.Contains(buf.String(), "src=") || !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("want caller location, got %q", buf.String())
	}
}
