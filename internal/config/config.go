/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the per-user chatquest configuration: a YAML file in the user
// config directory with CQ_* environment variables as read-only overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	General       GeneralConfig   `yaml:"general"`
	Storage       StorageConfig   `yaml:"storage"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Server        ServerConfig    `yaml:"server"`
}

type GeneralConfig struct {
	// Language is the UI language; empty means detect from the environment.
	Language string `yaml:"language"`
	Theme    string `yaml:"theme"` // "default" | "low-contrast"
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres"
	// Path is the SQLite file; empty means chatquest.sqlite in the data directory.
	Path string `yaml:"path"`
	// DSN is the Postgres connection string. Prefer the OS keychain (SaveDatabaseURL)
	// over writing credentials into the file.
	DSN string `yaml:"dsn,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// AllowedOrigins may open /ws besides same-origin pages.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "default"},
		Storage:       StorageConfig{Driver: "sqlite"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Telemetry:     TelemetryConfig{TimeoutMs: 3000},
		Server:        ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

// Env var names used as overrides.
const (
	EnvConfig         = "CQ_CONFIG"
	EnvLang           = "CQ_LANG"
	EnvTheme          = "CQ_THEME"
	EnvStorageDriver  = "CQ_STORAGE_DRIVER"
	EnvStoragePath    = "CQ_STORAGE_PATH"
	EnvDatabaseURL    = "CQ_DATABASE_URL"
	EnvTelemetryOptIn = "CQ_TELEMETRY_OPT_IN"
	EnvTelemetryURL   = "CQ_TELEMETRY_URL"
	EnvCrashURL       = "CQ_CRASH_UPLOAD_URL"
	EnvServerAddr     = "CQ_SERVER_ADDR"
	EnvAllowedOrigins = "CQ_ALLOWED_ORIGINS"
	EnvLogLevel       = "CQ_LOG_LEVEL"
	EnvLogFormat      = "CQ_LOG_FORMAT"
	EnvLogSource      = "CQ_LOG_SOURCE"
	EnvLogFile        = "CQ_LOG_FILE"
)

// ConfigDir returns the per-user chatquest directory, which also holds the data files.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ChatQuest")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ChatQuest")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "chatquest")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "chatquest")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path; CQ_CONFIG overrides the default location.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir is where the database, crash reports and logs live: the directory of the
// config file.
func DataDir() (string, error) {
	p, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

// Load reads the user config file (if present), applies defaults and merges env overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error;
// a malformed one is, but the defaults are still returned.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			loadErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		loadErr = fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, loadErr
}

// Save writes cfg to the user config file.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SQLitePath resolves the database file, defaulting into DataDir.
func (s StorageConfig) SQLitePath() (string, error) {
	if p := strings.TrimSpace(s.Path); p != "" {
		return p, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chatquest.sqlite"), nil
}

// Timeout returns the telemetry timeout in milliseconds, falling back to the default.
func (t TelemetryConfig) Timeout() int {
	if t.TimeoutMs <= 0 {
		return Defaults().Telemetry.TimeoutMs
	}
	return t.TimeoutMs
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if s := strings.TrimSpace(src.General.Language); s != "" {
		dst.General.Language = s
	}
	if s := strings.TrimSpace(src.General.Theme); s != "" {
		dst.General.Theme = s
	}
	if s := strings.TrimSpace(src.Storage.Driver); s != "" {
		dst.Storage.Driver = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Storage.Path); s != "" {
		dst.Storage.Path = s
	}
	if s := strings.TrimSpace(src.Storage.DSN); s != "" {
		dst.Storage.DSN = s
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// booleans: copy directly from the file so user preferences persist
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	if s := strings.TrimSpace(src.Telemetry.EventsURL); s != "" {
		dst.Telemetry.EventsURL = s
	}
	if s := strings.TrimSpace(src.Telemetry.CrashURL); s != "" {
		dst.Telemetry.CrashURL = s
	}
	if src.Telemetry.TimeoutMs != 0 {
		dst.Telemetry.TimeoutMs = src.Telemetry.TimeoutMs
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}
}

// splitList splits a comma separated env value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvLang)); v != "" {
		cfg.General.Language = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTheme)); v != "" {
		cfg.General.Theme = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.Telemetry.OptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.Telemetry.EventsURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCrashURL)); v != "" {
		cfg.Telemetry.CrashURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"general.language":       EnvLang,
	"general.theme":          EnvTheme,
	"storage.driver":         EnvStorageDriver,
	"storage.path":           EnvStoragePath,
	"storage.dsn":            EnvDatabaseURL,
	"telemetry.opt_in":       EnvTelemetryOptIn,
	"telemetry.events_url":   EnvTelemetryURL,
	"telemetry.crash_url":    EnvCrashURL,
	"server.addr":            EnvServerAddr,
	"server.allowed_origins": EnvAllowedOrigins,
	"logging.level":          EnvLogLevel,
	"logging.format":         EnvLogFormat,
	"logging.source":         EnvLogSource,
	"logging.file":           EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// ParseTheme validates a theme name.
func ParseTheme(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "default", "low-contrast":
		return v, nil
	}
	return "", fmt.Errorf("unknown theme %q (want default or low-contrast)", s)
}
