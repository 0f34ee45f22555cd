/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pack moves scenario scripts between libraries as a single .zip file.
package pack

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "chatquest/internal/log"
	"chatquest/internal/script"
	"chatquest/internal/session"
)

const (
	manifestName = "chatquest.manifest.txt"
	scenarioDir  = "scenarios/"
	scriptExt    = ".ink"
	// maxEntrySize bounds a single script read from an archive.
	maxEntrySize = 4 << 20
)

// Result lists what Install did with each archive entry.
type Result struct {
	Installed []string `json:"installed"`
	Skipped   []string `json:"skipped,omitempty"`
	Invalid   []string `json:"invalid,omitempty"`
}

// Export writes every scenario of lib to destZip as scenarios/<id>.ink. Demo entries
// are left out unless includeDemo is set. It returns the number of scripts written.
func Export(ctx context.Context, lib *session.Library, destZip string, includeDemo bool) (int, error) {
	l := applog.WithOperation(applog.WithComponent("pack"), "export").With(slog.String("zip", destZip))
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination path is required")
	}
	list, err := lib.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZip)
	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	var names []string
	added := 0
	for _, sc := range list {
		if sc.IsDemo && !includeDemo {
			continue
		}
		src, err := lib.Source(ctx, sc.ID)
		if err != nil {
			return added, err
		}
		w, err := zw.Create(scenarioDir + sc.ID + scriptExt)
		if err != nil {
			return added, fmt.Errorf("add %s: %w", sc.ID, err)
		}
		if _, err := io.WriteString(w, src); err != nil {
			return added, fmt.Errorf("write %s: %w", sc.ID, err)
		}
		names = append(names, fmt.Sprintf("%s\t%s", sc.ID, sc.Title))
		added++
	}

	manifest := fmt.Sprintf("Chat Quest Scenario Pack\nCreated: %s\nScenarios: %d\n\n%s\n",
		time.Now().Format(time.RFC3339), added, strings.Join(names, "\n"))
	w, err := zw.Create(manifestName)
	if err != nil {
		return added, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		return added, fmt.Errorf("write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return added, fmt.Errorf("build zip: %w", err)
	}
	l.Info("scenario pack exported", slog.Int("scenarios", added))
	return added, nil
}

// Install imports every .ink script in packZip into lib. Scenarios whose id is
// already stored are skipped; scripts that do not parse are reported as invalid.
func Install(ctx context.Context, lib *session.Library, packZip string) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("pack"), "install").With(slog.String("zip", packZip))
	var res Result
	if strings.TrimSpace(packZip) == "" {
		return res, errors.New("pack path is required")
	}
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return res, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || path.Ext(f.Name) != scriptExt {
			continue
		}
		src, err := readEntry(f)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", f.Name, err)
		}
		doc, err := script.Parse(src)
		if err != nil {
			l.Warn("skip invalid script", slog.String("entry", f.Name), slog.Any("err", err))
			res.Invalid = append(res.Invalid, f.Name)
			continue
		}
		id := doc.Config.Dialog.ID
		if _, err := lib.Source(ctx, id); err == nil {
			l.Warn("skip existing scenario", slog.String("id", id))
			res.Skipped = append(res.Skipped, id)
			continue
		} else if !errors.Is(err, session.ErrScenarioNotFound) {
			return res, err
		}
		if _, err := lib.Import(ctx, src, false); err != nil {
			return res, err
		}
		res.Installed = append(res.Installed, id)
	}
	l.Info("scenario pack installed", slog.Int("installed", len(res.Installed)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxEntrySize {
		return "", errors.New("script too large")
	}
	return string(b), nil
}
