/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session is the application shell around the engine: the scenario library,
// one open conversation at a time, progress persistence and choice-level undo.
//
// Storage failures are soft. They are logged and the conversation continues with
// defaults; only a failed parse or a missing scenario is reported to the caller.
package session

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatquest/internal/i18n"
	applog "chatquest/internal/log"
	"chatquest/internal/script"
	"chatquest/internal/storage"
)

//go:embed demo.ink
var demoSource string

// DemoSource returns the bundled demo scenario.
func DemoSource() string { return demoSource }

var (
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrRestartNotAllowed = errors.New("restart is disabled for this scenario")
	ErrNoScenario        = errors.New("no scenario available")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrInvalidChoice     = errors.New("invalid choice")
)

// keptRevisions bounds the edit history stored per scenario.
const keptRevisions = 20

// Library manages the stored scenarios and opens sessions on them.
type Library struct {
	store  *storage.Store
	loc    *i18n.Localizer
	events Events
	log    *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithEvents reports play events (telemetry) to ev.
func WithEvents(ev Events) LibraryOption {
	return func(l *Library) {
		if ev != nil {
			l.events = ev
		}
	}
}

// WithLocalizer sets the language used for fallback titles.
func WithLocalizer(loc *i18n.Localizer) LibraryOption {
	return func(l *Library) {
		if loc != nil {
			l.loc = loc
		}
	}
}

func NewLibrary(store *storage.Store, opts ...LibraryOption) *Library {
	l := &Library{
		store:  store,
		loc:    i18n.New("en"),
		events: noEvents{},
		log:    applog.WithComponent("session"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Store exposes the underlying store.
func (l *Library) Store() *storage.Store { return l.store }

// List returns the scenarios in display order.
func (l *Library) List(ctx context.Context) ([]storage.Scenario, error) {
	return l.store.Scenarios(ctx)
}

// Search returns scenarios whose title contains text.
func (l *Library) Search(ctx context.Context, text string) ([]storage.Scenario, error) {
	return l.store.Search(ctx, text)
}

// Source returns the stored script of id.
func (l *Library) Source(ctx context.Context, id string) (string, error) {
	src, ok, err := l.store.Source(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	return src, nil
}

// Import parses source and stores it. The id is dialog.id or a generated one; the
// title falls back to the localized "Untitled". Nothing is stored if parsing fails.
func (l *Library) Import(ctx context.Context, source string, isDemo bool) (storage.Scenario, error) {
	doc, err := script.Parse(source)
	if err != nil {
		return storage.Scenario{}, err
	}
	sc := storage.Scenario{ID: doc.Config.Dialog.ID, Title: l.titleOf(doc), IsDemo: isDemo}
	if sc.ID == "" {
		sc.ID = script.GenerateID()
	}
	if err := l.save(ctx, sc, source); err != nil {
		return storage.Scenario{}, err
	}
	l.log.Info("scenario imported", slog.String("id", sc.ID), slog.Bool("demo", isDemo))
	return sc, nil
}

// SaveEdited stores an edited script. editingID is the scenario being edited, or ""
// for a new one. The demo flag of an existing entry is kept. reload reports that the
// saved progress was dropped because the scenario is new or currently open.
func (l *Library) SaveEdited(ctx context.Context, editingID, source string) (sc storage.Scenario, reload bool, err error) {
	doc, err := script.Parse(source)
	if err != nil {
		return storage.Scenario{}, false, err
	}
	id := editingID
	if id == "" {
		id = doc.Config.Dialog.ID
	}
	if id == "" {
		id = script.GenerateID()
	}
	existing, _, err := l.store.Scenario(ctx, id)
	if err != nil {
		l.log.Warn("lookup existing scenario failed", slog.String("id", id), slog.Any("err", err))
	}
	sc = storage.Scenario{ID: id, Title: l.titleOf(doc), IsDemo: existing.IsDemo}
	if err := l.save(ctx, sc, source); err != nil {
		return storage.Scenario{}, false, err
	}
	current, err := l.store.CurrentScenario(ctx)
	if err != nil {
		l.log.Warn("read current scenario failed", slog.Any("err", err))
	}
	if editingID == "" || id == current {
		reload = true
		if err := l.store.DeleteProgress(ctx, id); err != nil {
			l.log.Warn("drop progress failed", slog.String("id", id), slog.Any("err", err))
		}
	}
	return sc, reload, nil
}

func (l *Library) save(ctx context.Context, sc storage.Scenario, source string) error {
	if err := l.store.SaveScenario(ctx, sc, source); err != nil {
		return err
	}
	if err := l.store.AddRevision(ctx, sc.ID, source, time.Now()); err != nil {
		l.log.Warn("record revision failed", slog.String("id", sc.ID), slog.Any("err", err))
		return nil
	}
	if _, err := l.store.PruneRevisions(ctx, sc.ID, keptRevisions); err != nil {
		l.log.Warn("prune revisions failed", slog.String("id", sc.ID), slog.Any("err", err))
	}
	return nil
}

func (l *Library) titleOf(doc *script.Document) string {
	if t := strings.TrimSpace(doc.Config.Dialog.Title); t != "" {
		return t
	}
	return l.loc.T("untitled")
}

// Delete removes a scenario with its progress and history.
func (l *Library) Delete(ctx context.Context, id string) error {
	if _, ok, err := l.store.Scenario(ctx, id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	return l.store.DeleteScenario(ctx, id)
}

// ClearAll deletes every scenario, progress record and setting.
func (l *Library) ClearAll(ctx context.Context) error { return l.store.ClearAll(ctx) }

// EnsureDemo imports the bundled demo unless a demo entry already exists.
func (l *Library) EnsureDemo(ctx context.Context) error {
	list, err := l.store.Scenarios(ctx)
	if err != nil {
		return err
	}
	for _, sc := range list {
		if sc.IsDemo {
			return nil
		}
	}
	_, err = l.Import(ctx, demoSource, true)
	return err
}

// Settings returns the user settings; a storage failure yields defaults.
func (l *Library) Settings(ctx context.Context) storage.Settings {
	st, err := l.store.Settings(ctx)
	if err != nil {
		l.log.Warn("read settings failed, using defaults", slog.Any("err", err))
	}
	return st
}

// SaveSettings merges patch into the stored settings.
func (l *Library) SaveSettings(ctx context.Context, patch storage.Settings) (storage.Settings, error) {
	return l.store.SaveSettings(ctx, patch)
}

// Current returns the scenario to open at startup: the last one opened if it still
// exists, else the first in the list. ErrNoScenario means the library is empty.
func (l *Library) Current(ctx context.Context) (string, error) {
	id, err := l.store.CurrentScenario(ctx)
	if err != nil {
		l.log.Warn("read current scenario failed", slog.Any("err", err))
	}
	if id != "" {
		if _, ok, err := l.store.Scenario(ctx, id); err == nil && ok {
			return id, nil
		}
	}
	list, err := l.store.Scenarios(ctx)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", ErrNoScenario
	}
	return list[0].ID, nil
}

// ResetProgress drops the saved progress of id without opening a session. It honours
// ui.allowRestart like Session.Restart.
func (l *Library) ResetProgress(ctx context.Context, id string) error {
	src, err := l.Source(ctx, id)
	if err != nil {
		return err
	}
	doc, err := script.Parse(src)
	if err != nil {
		return err
	}
	if p := doc.Config.UI.AllowRestart; p != nil && !*p {
		return ErrRestartNotAllowed
	}
	if err := l.store.DeleteProgress(ctx, id); err != nil {
		return err
	}
	l.events.ScenarioRestarted(id)
	return nil
}

// Revisions returns up to limit stored versions of id, newest first.
func (l *Library) Revisions(ctx context.Context, id string, limit int) ([]storage.Revision, error) {
	return l.store.Revisions(ctx, id, limit)
}
