/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	applog "chatquest/internal/log"
	"chatquest/internal/server"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scenarios over HTTP and WebSocket",
		Long: `Serve the scenario library over HTTP.

  GET /healthz          liveness
  GET /readyz           storage reachable
  GET /api/scenarios    list scenarios (?q= searches titles)
  GET /ws?scenario=ID   play a scenario over a WebSocket`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			lib, err := opts.library(ctx)
			if err != nil {
				return err
			}
			if err := lib.EnsureDemo(ctx); err != nil {
				opts.formatter(cmd).VerboseLog("seed demo: %v", err)
			}
			if addr == "" {
				addr = opts.cfg.Server.Addr
			}
			applog.WithComponent("cli").Info("serving", slog.String("addr", addr))
			return server.New(lib,
				server.WithLocalizer(opts.loc),
				server.WithAllowedOrigins(opts.cfg.Server.AllowedOrigins),
			).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from the config)")
	return cmd
}
