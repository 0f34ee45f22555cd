/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chatquest/internal/config"
	"chatquest/internal/engine"
	"chatquest/internal/i18n"
	"chatquest/internal/storage"
)

// SettingsView is what settings prints; the database URL itself is never shown.
type SettingsView struct {
	storage.Settings
	Driver      string `json:"storageDriver"`
	DatabaseURL bool   `json:"databaseUrlSet"`
}

func NewSettingsCommand(opts *RootOptions) *cobra.Command {
	var (
		lang, theme, dsn     string
		typingMin, typingMax int
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change player settings",
		Long: `Show or change player settings.

Without flags the current settings are printed. --database-url stores the
PostgreSQL connection string in the system keychain; pass an empty value to remove it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := opts.formatter(cmd)
			lib, err := opts.library(ctx)
			if err != nil {
				return err
			}
			var patch storage.Settings
			if cmd.Flags().Changed("lang") {
				if err := i18n.Validate(lang); err != nil {
					return f.Fail(ExitCommandError, fmt.Sprintf("%v: %q (want en or ru)", err, lang), nil)
				}
				patch.Language = i18n.Normalize(lang)
			}
			if cmd.Flags().Changed("theme") {
				t, err := config.ParseTheme(theme)
				if err != nil {
					return f.Fail(ExitCommandError, err.Error(), nil)
				}
				patch.Theme = t
			}
			patch.TypingMinDelayMs = typingMin
			patch.TypingMaxDelayMs = typingMax
			if typingMin < 0 || typingMax < 0 {
				return f.Fail(ExitCommandError, "typing delays must not be negative", nil)
			}
			cur := lib.Settings(ctx)
			merged := cur.Merge(patch)
			lo, hi := merged.TypingMinDelayMs, merged.TypingMaxDelayMs
			if lo == 0 {
				lo = int(engine.DefaultMinDelay.Milliseconds())
			}
			if hi == 0 {
				hi = int(engine.DefaultMaxDelay.Milliseconds())
			}
			if lo > hi {
				return f.Fail(ExitCommandError, fmt.Sprintf("typing-min (%d) is greater than typing-max (%d)", lo, hi), nil)
			}
			if cmd.Flags().Changed("database-url") {
				if err := config.SaveDatabaseURL(strings.TrimSpace(dsn)); err != nil {
					return WrapExitError(ExitFailure, "store database URL", err)
				}
			}
			if patch != (storage.Settings{}) {
				if cur, err = lib.SaveSettings(ctx, patch); err != nil {
					return WrapExitError(ExitFailure, "save settings", err)
				}
			}
			view := SettingsView{Settings: cur, Driver: opts.cfg.Storage.Driver}
			if view.Driver == "" {
				view.Driver = "sqlite"
			}
			if view.Driver == "postgres" || cmd.Flags().Changed("database-url") {
				view.DatabaseURL = config.DatabaseURL(opts.cfg) != ""
			}
			return f.Success(view, settingsText(opts.localizer(), view))
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "interface language (en, ru)")
	cmd.Flags().StringVar(&theme, "theme", "", "colour theme (default, low-contrast)")
	cmd.Flags().IntVar(&typingMin, "typing-min", 0, "minimum typing delay in ms")
	cmd.Flags().IntVar(&typingMax, "typing-max", 0, "maximum typing delay in ms")
	cmd.Flags().StringVar(&dsn, "database-url", "", "PostgreSQL URL to keep in the system keychain")
	return cmd
}

func settingsText(loc *i18n.Localizer, v SettingsView) string {
	or := func(s, def string) string {
		if s == "" {
			return def
		}
		return s
	}
	ms := func(n int) string {
		if n == 0 {
			return "-"
		}
		return fmt.Sprintf("%d", n)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", loc.T("language"), or(v.Language, loc.Lang()))
	fmt.Fprintf(&b, "%s: %s\n", loc.T("theme"), or(v.Theme, "default"))
	fmt.Fprintf(&b, "%s: %s / %s\n", loc.T("typingSpeed"), ms(v.TypingMinDelayMs), ms(v.TypingMaxDelayMs))
	fmt.Fprintf(&b, "storage: %s", v.Driver)
	if v.DatabaseURL {
		b.WriteString(" (database URL in keychain)")
	}
	return b.String()
}

func NewClearCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every scenario, all progress and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := opts.formatter(cmd)
			lib, err := opts.library(ctx)
			if err != nil {
				return err
			}
			if !yes && !opts.confirm(cmd, cmd.InOrStdin(), opts.loc.T("confirmClearData")) {
				return nil
			}
			if err := lib.ClearAll(ctx); err != nil {
				return WrapExitError(ExitFailure, "clear data", err)
			}
			return f.Success(map[string]bool{"cleared": true}, opts.loc.T("cleared"))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
