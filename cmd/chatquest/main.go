/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"log/slog"
	"os"

	"chatquest/internal/cli"
	"chatquest/internal/crash"
	applog "chatquest/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	// environment defaults until the config file is read
	applog.Init(applog.FromEnv())
	slot := &crash.Slot{}
	defer crash.Recover(slot)

	applog.WithComponent("cli").Debug("start", slog.Int("args", len(os.Args)))
	return cli.Execute(context.Background(), slot, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
