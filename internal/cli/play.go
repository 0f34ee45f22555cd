/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chatquest/internal/export"
	"chatquest/internal/script"
	"chatquest/internal/session"
	"chatquest/internal/term"
)

// openSession opens id, or the startup scenario when id is empty, seeding the demo first.
func (o *RootOptions) openSession(ctx context.Context, f *OutputFormatter, id string) (*session.Session, error) {
	lib, err := o.library(ctx)
	if err != nil {
		return nil, err
	}
	if err := lib.EnsureDemo(ctx); err != nil {
		f.VerboseLog("seed demo: %v", err)
	}
	if id == "" {
		if id, err = lib.Current(ctx); err != nil {
			return nil, f.Fail(ExitCommandError, o.loc.T("noScenario"), nil)
		}
	}
	sess, err := lib.Open(ctx, id)
	switch {
	case errors.Is(err, session.ErrScenarioNotFound):
		return nil, f.Fail(ExitCommandError, o.loc.Tf("scenarioNotFound", map[string]any{"id": id}), nil)
	case script.IsFormatError(err):
		return nil, o.parseFailure(f, err)
	case err != nil:
		return nil, err
	}
	if o.Slot != nil {
		o.Slot.Set(sess)
	}
	return sess, nil
}

func (o *RootOptions) theme(ctx context.Context) string {
	if o.lib != nil {
		if t := o.lib.Settings(ctx).Theme; t != "" {
			return t
		}
	}
	return o.cfg.General.Theme
}

func NewPlayCommand(opts *RootOptions) *cobra.Command {
	var instant bool
	cmd := &cobra.Command{
		Use:   "play [id]",
		Short: "Play a scenario in the terminal",
		Long: `Play a scenario in the terminal, continuing saved progress.
Without an id the last opened scenario is played.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			sess, err := opts.openSession(ctx, opts.formatter(cmd), id)
			if err != nil {
				return err
			}
			popts := []term.Option{term.WithLocalizer(opts.loc), term.WithTheme(opts.theme(ctx))}
			if instant {
				popts = append(popts, term.WithDelay(func(time.Duration) time.Duration { return 0 }))
			}
			return term.Run(ctx, sess, cmd.InOrStdin(), cmd.OutOrStdout(), popts...)
		},
	}
	cmd.Flags().BoolVar(&instant, "instant", false, "show messages without typing delays")
	return cmd
}

func NewRestartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <id>",
		Short: "Forget the saved progress of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := opts.formatter(cmd)
			lib, err := opts.library(ctx)
			if err != nil {
				return err
			}
			switch err := lib.ResetProgress(ctx, args[0]); {
			case errors.Is(err, session.ErrRestartNotAllowed):
				return f.Fail(ExitFailure, opts.loc.T("restartNotAllowed"), nil)
			case errors.Is(err, session.ErrScenarioNotFound):
				return f.Fail(ExitCommandError, opts.loc.Tf("scenarioNotFound", map[string]any{"id": args[0]}), nil)
			case script.IsFormatError(err):
				return opts.parseFailure(f, err)
			case err != nil:
				return err
			}
			return f.Success(map[string]string{"id": args[0]}, opts.loc.Tf("restarted", map[string]any{"id": args[0]}))
		},
	}
}

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var pdfPath, pngPath string
	var width int
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the conversation so far as PDF or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := opts.formatter(cmd)
			if pdfPath == "" && pngPath == "" {
				return f.Fail(ExitCommandError, "one of --pdf or --png is required", nil)
			}
			sess, err := opts.openSession(ctx, f, args[0])
			if err != nil {
				return err
			}
			tr := export.FromMessages(sess.Title(), sess.Transcript(), sess.Engine().Character)
			var written []string
			if pdfPath != "" {
				if err := export.WriteFile(pdfPath, func(w io.Writer) error { return export.WritePDF(w, tr) }); err != nil {
					return err
				}
				written = append(written, pdfPath)
			}
			if pngPath != "" {
				opt := export.PNGOptions{Width: width}
				if err := export.WriteFile(pngPath, func(w io.Writer) error { return export.WritePNG(w, tr, opt) }); err != nil {
					return err
				}
				written = append(written, pngPath)
			}
			return f.Success(map[string]any{"files": written, "messages": len(tr.Entries)}, strings.Join(written, "\n"))
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write a PDF transcript to this file")
	cmd.Flags().StringVar(&pngPath, "png", "", "write a PNG transcript to this file")
	cmd.Flags().IntVar(&width, "width", 640, "PNG width in pixels")
	return cmd
}
