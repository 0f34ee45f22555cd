/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli is the chatquest command tree.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"chatquest/internal/config"
	"chatquest/internal/crash"
	"chatquest/internal/i18n"
	applog "chatquest/internal/log"
	"chatquest/internal/session"
	"chatquest/internal/storage"
	"chatquest/internal/telemetry"
)

// RootOptions holds global flags and the lazily opened application state.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json"
	ConfigPath string

	// Slot receives the active session for crash autosave; may be nil.
	Slot *crash.Slot

	cfg    config.AppConfig
	store  *storage.Store
	lib    *session.Library
	loc    *i18n.Localizer
	events *telemetry.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Execute runs the command line args and returns the process exit code. Storage and
// telemetry opened by the command are released before it returns.
func Execute(ctx context.Context, slot *crash.Slot, args []string, in io.Reader, out, errOut io.Writer) int {
	opts := &RootOptions{Slot: slot}
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	err := cmd.ExecuteContext(ctx)
	if cerr := opts.close(ctx); cerr != nil {
		applog.WithComponent("cli").Warn("close storage failed", slog.Any("err", cerr))
	}
	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || !exitErr.printed {
			_, _ = fmt.Fprintln(errOut, "Error:", err)
		}
	}
	return GetExitCode(err)
}

// NewRootCommand builds the command tree around opts.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatquest",
		Short:         "Chat Quest - interactive chat stories",
		Long:          "Play branching chat-style stories written as YAML front matter plus knots, choices and diverts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.loadConfig()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: per-user config directory, or "+config.EnvConfig+")")

	cmd.AddCommand(
		NewVersionCommand(opts),
		NewValidateCommand(opts),
		NewImportCommand(opts),
		NewEditCommand(opts),
		NewListCommand(opts),
		NewRevisionsCommand(opts),
		NewDeleteCommand(opts),
		NewPlayCommand(opts),
		NewRestartCommand(opts),
		NewExportCommand(opts),
		NewServeCommand(opts),
		NewClearCommand(opts),
		NewSettingsCommand(opts),
		NewPackCommand(opts),
	)
	return cmd
}

func (o *RootOptions) loadConfig() error {
	var (
		cfg config.AppConfig
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFrom(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	logOpts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	}
	if o.Verbose {
		logOpts.Level = "debug"
	}
	applog.Init(logOpts)
	if err != nil {
		applog.WithComponent("cli").Warn("config unreadable, using defaults", slog.Any("err", err))
	}
	o.cfg = cfg
	return nil
}

// library opens storage on first use and wires telemetry and localization.
func (o *RootOptions) library(ctx context.Context) (*session.Library, error) {
	if o.lib != nil {
		return o.lib, nil
	}
	l := applog.WithComponent("cli")
	var (
		st  *storage.Store
		err error
	)
	switch o.cfg.Storage.Driver {
	case "postgres":
		dsn := config.DatabaseURL(o.cfg)
		if dsn == "" {
			return nil, NewExitError(ExitCommandError, "storage.driver is postgres but no database URL is set (use "+config.EnvDatabaseURL+" or settings --database-url)")
		}
		st, err = storage.OpenPostgres(ctx, dsn)
	case "", "sqlite":
		var path string
		if path, err = o.cfg.Storage.SQLitePath(); err == nil {
			var recovered bool
			st, recovered, err = storage.OpenOrRecover(ctx, path)
			if recovered {
				l.Warn("database was damaged and has been recreated; a backup was kept", slog.String("path", path))
			}
		}
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown storage driver %q", o.cfg.Storage.Driver))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open storage", err)
	}
	o.store = st
	o.events = telemetry.New(telemetry.FromConfig(o.cfg.Telemetry))
	telemetry.SetDefault(o.events)

	lang := o.cfg.General.Language
	if lang == "" {
		saved, err := st.Settings(ctx)
		if err != nil {
			l.Warn("read settings failed", slog.Any("err", err))
		}
		lang = i18n.Detect(saved.Language)
	}
	o.loc = i18n.New(lang)
	o.lib = session.NewLibrary(st, session.WithEvents(o.events), session.WithLocalizer(o.loc))
	return o.lib, nil
}

func (o *RootOptions) localizer() *i18n.Localizer {
	if o.loc == nil {
		return i18n.New(i18n.Detect(o.cfg.General.Language))
	}
	return o.loc
}

func (o *RootOptions) close(ctx context.Context) error {
	if o.Slot != nil {
		o.Slot.Set(nil)
	}
	if o.events != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		o.events.Flush(ctx)
		o.events.Close()
	}
	if o.store != nil {
		err := o.store.Close()
		o.store, o.lib = nil, nil
		return err
	}
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// confirm asks question on the command's output and reads y/N from its input.
func (o *RootOptions) confirm(cmd *cobra.Command, in io.Reader, question string) bool {
	loc := o.localizer()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s [%s/N] ", question, loc.T("yes"))
	line, _ := bufio.NewReader(in).ReadString('\n')
	ans := strings.ToLower(strings.TrimSpace(line))
	return ans == "y" || ans == "yes" || ans == strings.ToLower(loc.T("yes"))
}
