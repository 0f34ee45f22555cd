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

	"chatquest/internal/pack"
)

func NewPackCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Share scenarios as a .zip pack",
	}
	cmd.AddCommand(newPackExportCommand(opts), newPackInstallCommand(opts))
	return cmd
}

func newPackExportCommand(opts *RootOptions) *cobra.Command {
	var withDemo bool
	cmd := &cobra.Command{
		Use:   "export <file.zip>",
		Short: "Write every stored scenario script into a pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library(cmd.Context())
			if err != nil {
				return err
			}
			n, err := pack.Export(cmd.Context(), lib, args[0], withDemo)
			if err != nil {
				return WrapExitError(ExitFailure, "export pack", err)
			}
			return opts.formatter(cmd).Success(map[string]any{"file": args[0], "scenarios": n},
				fmt.Sprintf("%d scenario(s) written to %s", n, args[0]))
		},
	}
	cmd.Flags().BoolVar(&withDemo, "demo", false, "include demo scenarios")
	return cmd
}

func newPackInstallCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install <file.zip>",
		Short: "Import the scenarios of a pack, skipping ids already stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library(cmd.Context())
			if err != nil {
				return err
			}
			res, err := pack.Install(cmd.Context(), lib, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "install pack", err)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "installed: %d", len(res.Installed))
			if len(res.Skipped) > 0 {
				fmt.Fprintf(&b, "\nskipped (already stored): %s", strings.Join(res.Skipped, ", "))
			}
			if len(res.Invalid) > 0 {
				fmt.Fprintf(&b, "\ninvalid: %s", strings.Join(res.Invalid, ", "))
			}
			return opts.formatter(cmd).Success(res, b.String())
		},
	}
}
