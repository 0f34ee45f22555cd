/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chatquest/internal/script"
	"chatquest/internal/session"
)

// ValidationResult is the data of a successful validate.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Knots int    `json:"knots"`
	Dump  string `json:"dump,omitempty"`
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "read "+path, err)
	}
	return string(b), nil
}

// parseFailure reports a parse error in the user's language with exit code 1.
func (o *RootOptions) parseFailure(f *OutputFormatter, err error) error {
	var details any
	if fe, ok := script.AsFormatError(err); ok {
		details = map[string]string{"kind": string(fe.Kind), "field": fe.Field, "participant": fe.Participant}
	}
	return f.Fail(ExitFailure, o.localizer().Error(err), details)
}

func NewValidateCommand(opts *RootOptions) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a scenario script without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			doc, err := script.Parse(src)
			if err != nil {
				return opts.parseFailure(f, err)
			}
			res := ValidationResult{Valid: true, ID: doc.Config.Dialog.ID, Title: doc.Config.Dialog.Title, Knots: len(doc.Knots)}
			text := fmt.Sprintf("✓ %s (%s): %d knots", res.Title, res.ID, res.Knots)
			if dump {
				res.Dump = script.Dump(doc)
				text += "\n" + res.Dump
			}
			return f.Success(res, text)
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print the parsed structure")
	return cmd
}

func NewImportCommand(opts *RootOptions) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add a scenario script to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			lib, err := opts.library(cmd.Context())
			if err != nil {
				return err
			}
			sc, err := lib.Import(cmd.Context(), src, demo)
			if script.IsFormatError(err) {
				return opts.parseFailure(f, err)
			} else if err != nil {
				return err
			}
			return f.Success(sc, opts.loc.Tf("imported", map[string]any{"title": sc.Title, "id": sc.ID}))
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "mark the scenario as a demo")
	return cmd
}

func NewEditCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <file>",
		Short: "Replace the script of a stored scenario",
		Long: `Replace the script of a stored scenario, keeping its id and demo flag.
Saved progress is dropped when the scenario is the one currently open.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			src, err := readSource(args[1])
			if err != nil {
				return err
			}
			lib, err := opts.library(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := lib.Source(cmd.Context(), args[0]); errors.Is(err, session.ErrScenarioNotFound) {
				return f.Fail(ExitCommandError, opts.loc.Tf("scenarioNotFound", map[string]any{"id": args[0]}), nil)
			}
			sc, reload, err := lib.SaveEdited(cmd.Context(), args[0], src)
			if script.IsFormatError(err) {
				return opts.parseFailure(f, err)
			} else if err != nil {
				return err
			}
			f.VerboseLog("progress reset: %v", reload)
			return f.Success(sc, opts.loc.Tf("imported", map[string]any{"title": sc.Title, "id": sc.ID}))
		},
	}
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lib, err := opts.library(ctx)
			if err != nil {
				return err
			}
			if err := lib.EnsureDemo(ctx); err != nil {
				opts.formatter(cmd).VerboseLog("seed demo: %v", err)
			}
			list, err := lib.List(ctx)
			if search != "" {
				list, err = lib.Search(ctx, search)
			}
			if err != nil {
				return err
			}
			var b strings.Builder
			b.WriteString(opts.loc.T("scenarios") + ":")
			for _, sc := range list {
				fmt.Fprintf(&b, "\n  %-24s %s", sc.ID, sc.Title)
				if sc.IsDemo {
					b.WriteString(" (demo)")
				}
			}
			return opts.formatter(cmd).Success(list, b.String())
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "only titles containing this text")
	return cmd
}

func NewRevisionsCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "revisions <id>",
		Short: "Show when a scenario's script was saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library(cmd.Context())
			if err != nil {
				return err
			}
			revs, err := lib.Revisions(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			type row struct {
				TS    time.Time `json:"ts"`
				Bytes int       `json:"bytes"`
			}
			rows := make([]row, 0, len(revs))
			var b strings.Builder
			for i, r := range revs {
				rows = append(rows, row{TS: r.TS, Bytes: len(r.Source)})
				if i > 0 {
					b.WriteByte('\n')
				}
				fmt.Fprintf(&b, "%s  %d bytes", r.TS.Local().Format("2006-01-02 15:04:05"), len(r.Source))
			}
			return opts.formatter(cmd).Success(rows, b.String())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of revisions")
	return cmd
}

func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scenario with its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := opts.formatter(cmd)
			lib, err := opts.library(ctx)
			if err != nil {
				return err
			}
			sc, ok, err := lib.Store().Scenario(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return f.Fail(ExitCommandError, opts.loc.Tf("scenarioNotFound", map[string]any{"id": args[0]}), nil)
			}
			if !yes && !opts.confirm(cmd, cmd.InOrStdin(), opts.loc.Tf("confirmDelete", map[string]any{"title": sc.Title})) {
				return nil
			}
			if err := lib.Delete(ctx, sc.ID); err != nil {
				return err
			}
			return f.Success(sc, opts.loc.Tf("deleted", map[string]any{"title": sc.Title}))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
