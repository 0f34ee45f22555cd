/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv(EnvConfig, path)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Server.Addr != "127.0.0.1:8080" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := isolate(t)
	cfg := Defaults()
	cfg.General.Language = "ru"
	cfg.Telemetry.OptIn = true
	cfg.Logging.Source = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.General.Language != "ru" || !got.Telemetry.OptIn || !got.Logging.Source {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestMalformedFileKeepsDefaults(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("general: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("defaults not returned: %+v", cfg)
	}
}

func TestMergeNormalizes(t *testing.T) {
	dst := Defaults()
	src := AppConfig{
		Storage: StorageConfig{Driver: " Postgres "},
		Logging: LoggingConfig{Level: " DEBUG ", Format: "JSON", File: " /tmp/cq.log "},
		Server:  ServerConfig{Addr: ":9000"},
	}
	mergeInto(&dst, &src)
	if dst.Storage.Driver != "postgres" || dst.Logging.Level != "debug" || dst.Logging.Format != "json" ||
		dst.Logging.File != "/tmp/cq.log" || dst.Server.Addr != ":9000" {
		t.Fatalf("merge mismatch: %+v", dst)
	}
	if dst.General.Theme != "default" {
		t.Fatalf("empty fields must keep defaults: %+v", dst.General)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLang, "en")
	t.Setenv(EnvStorageDriver, "POSTGRES")
	t.Setenv(EnvDatabaseURL, "postgres://x")
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvServerAddr, ":7000")
	t.Setenv(EnvAllowedOrigins, "https://a.example, ,https://b.example")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvLogSource, "1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.Language != "en" || cfg.Storage.Driver != "postgres" || cfg.Storage.DSN != "postgres://x" ||
		!cfg.Telemetry.OptIn || cfg.Server.Addr != ":7000" || cfg.Logging.Level != "warn" || !cfg.Logging.Source {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if got := cfg.Server.AllowedOrigins; len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("allowed origins = %q", got)
	}
	if env, ok := EnvOverrideFor("storage.dsn"); !ok || env != EnvDatabaseURL {
		t.Fatalf("EnvOverrideFor = %q %v", env, ok)
	}
	if _, ok := EnvOverrideFor("general.theme"); ok {
		t.Fatalf("theme is not overridden")
	}
}

func TestSQLitePathDefaultsToDataDir(t *testing.T) {
	path := isolate(t)
	got, err := StorageConfig{}.SQLitePath()
	if err != nil {
		t.Fatalf("SQLitePath: %v", err)
	}
	if want := filepath.Join(filepath.Dir(path), "chatquest.sqlite"); got != want {
		t.Fatalf("SQLitePath = %q, want %q", got, want)
	}
	if got, _ := (StorageConfig{Path: "/x.db"}).SQLitePath(); got != "/x.db" {
		t.Fatalf("explicit path ignored: %q", got)
	}
}

func TestParseTheme(t *testing.T) {
	if v, err := ParseTheme("Low-Contrast"); err != nil || v != "low-contrast" {
		t.Fatalf("ParseTheme = %q %v", v, err)
	}
	if _, err := ParseTheme("neon"); err == nil {
		t.Fatalf("unknown theme accepted")
	}
}

type memSecrets map[string]string

func (m memSecrets) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memSecrets) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memSecrets) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

func TestDatabaseURLFromKeychain(t *testing.T) {
	old := secrets
	mem := memSecrets{}
	secrets = mem
	t.Cleanup(func() { secrets = old })

	if got := DatabaseURL(Defaults()); got != "" {
		t.Fatalf("expected empty dsn, got %q", got)
	}
	if err := SaveDatabaseURL("postgres://kc"); err != nil {
		t.Fatalf("SaveDatabaseURL: %v", err)
	}
	if got := DatabaseURL(Defaults()); got != "postgres://kc" {
		t.Fatalf("keychain dsn = %q", got)
	}
	cfg := Defaults()
	cfg.Storage.DSN = "postgres://file"
	if got := DatabaseURL(cfg); got != "postgres://file" {
		t.Fatalf("config dsn should win, got %q", got)
	}
	if err := SaveDatabaseURL(""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := SaveDatabaseURL(""); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if len(mem) != 0 {
		t.Fatalf("entry not removed")
	}
}
