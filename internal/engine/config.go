/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"time"
	"unicode/utf8"

	"chatquest/internal/script"
)

// TypingSettings are the effective typing-indicator bounds.
type TypingSettings struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// SetTypingOverride sets user-level typing bounds. Non-zero values win over the
// scenario's ui.typing block.
func (e *Engine) SetTypingOverride(minDelay, maxDelay time.Duration) {
	e.minOverride, e.maxOverride = minDelay, maxDelay
}

// TypingSettings resolves override, then scenario, then defaults.
func (e *Engine) TypingSettings() TypingSettings {
	t := e.doc.Config.UI.Typing
	ts := TypingSettings{
		MinDelay: time.Duration(t.MinDelayMs) * time.Millisecond,
		MaxDelay: time.Duration(t.MaxDelayMs) * time.Millisecond,
	}
	if e.minOverride > 0 {
		ts.MinDelay = e.minOverride
	}
	if e.maxOverride > 0 {
		ts.MaxDelay = e.maxOverride
	}
	if ts.MinDelay <= 0 {
		ts.MinDelay = DefaultMinDelay
	}
	if ts.MaxDelay <= 0 {
		ts.MaxDelay = DefaultMaxDelay
	}
	return ts
}

// TypingDelay is 50ms per character of text, clamped to the typing bounds.
// The upper bound wins if the bounds are inverted.
func (e *Engine) TypingDelay(text string) time.Duration {
	ts := e.TypingSettings()
	d := time.Duration(utf8.RuneCountInString(text)) * perCharacterWait
	return min(max(d, ts.MinDelay), ts.MaxDelay)
}

// IsPlayer reports whether speaker is the player participant or the literal "player".
func (e *Engine) IsPlayer(speaker string) bool {
	return speaker == e.doc.Config.Player() || speaker == "player"
}

// AllowRestart is true unless the scenario sets ui.allowRestart: false.
func (e *Engine) AllowRestart() bool {
	if p := e.doc.Config.UI.AllowRestart; p != nil {
		return *p
	}
	return true
}

// Character looks up a character definition.
func (e *Engine) Character(id string) (script.Character, bool) {
	c, ok := e.doc.Config.Characters[id]
	return c, ok
}

// Title returns the scenario title or DefaultTitle.
func (e *Engine) Title() string {
	if t := e.doc.Config.Dialog.Title; t != "" {
		return t
	}
	return DefaultTitle
}

// ID returns the scenario id.
func (e *Engine) ID() string { return e.doc.Config.Dialog.ID }
