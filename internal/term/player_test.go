/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package term

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatquest/internal/i18n"
	"chatquest/internal/session"
	"chatquest/internal/storage"
)

const doorScript = `---
dialog:
  id: t
  title: Door
  participants:
    - guard
    - hero
characters:
  guard:
    name: Guard
    color: "#ff0000"
  hero:
    name: Hero
---
=== start ===
~ speaker = guard
Halt!
+ Let me in -> in
+ [Run] -> END

=== in ===
Fine.
Go on.
-> END
`

const snoreScript = `---
dialog:
  id: snore
  title: Snore
  participants: [guard, hero]
characters:
  guard:
    name: Guard
  hero:
    name: Hero
---
=== start ===
~ speaker = guard
Zzz...
-> start
`

func openLib(t *testing.T, src, id string) (*session.Library, *session.Session) {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(filepath.Join(t.TempDir(), "cq.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	lib := session.NewLibrary(st)
	_, err = lib.Import(ctx, src, false)
	require.NoError(t, err)
	s, err := lib.Open(ctx, id)
	require.NoError(t, err)
	return lib, s
}

func open(t *testing.T) *session.Session {
	t.Helper()
	_, s := openLib(t, doorScript, "t")
	return s
}

// newModel records every pause the model asks for and skips the wait.
func newModel(s *session.Session, opts ...Option) (Model, *[]time.Duration) {
	var waits []time.Duration
	opts = append([]Option{
		WithRenderer(lipgloss.NewRenderer(&bytes.Buffer{})),
		WithDelay(func(d time.Duration) time.Duration {
			waits = append(waits, d)
			return 0
		}),
	}, opts...)
	return NewModel(context.Background(), s, opts...), &waits
}

// drive feeds the messages cmd produces back into m until nothing is left, the model
// quits, or limit messages were handled.
func drive(t *testing.T, m Model, cmd tea.Cmd, limit int) (Model, bool) {
	t.Helper()
	cmds := []tea.Cmd{cmd}
	for n := 0; len(cmds) > 0; {
		c := cmds[0]
		cmds = cmds[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil:
		case tea.QuitMsg:
			return m, true
		case tea.BatchMsg:
			cmds = append(cmds, msg...)
		default:
			if n++; n > limit {
				return m, false
			}
			next, nc := m.Update(msg)
			m = next.(Model)
			cmds = append(cmds, nc)
		}
	}
	return m, false
}

func start(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = drive(t, m, m.Init(), 1000)
	return m
}

// submit sends text through the input and returns the command Update produced.
func submit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	if text != "" {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
		m = next.(Model)
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// enter submits text and runs the model until it waits for input again.
func enter(t *testing.T, m Model, text string) (Model, bool) {
	t.Helper()
	m, cmd := submit(t, m, text)
	return drive(t, m, cmd, 1000)
}

func TestChoosesAndEnds(t *testing.T) {
	s := open(t)
	m, waits := newModel(s)
	m = start(t, m)

	view := m.View()
	assert.Contains(t, view, "Door")
	assert.Contains(t, view, "Guard: Halt!")
	assert.Contains(t, view, "[1] Let me in")
	assert.Contains(t, view, "[2] Run")
	assert.Contains(t, view, "Choose [1-2], r restart, q quit")

	m, quit := enter(t, m, "1")
	require.False(t, quit)
	view = m.View()
	assert.Contains(t, view, "Hero  Let me in")
	assert.Contains(t, view, "Guard: Fine.")
	assert.Contains(t, view, "End of scenario")
	assert.Contains(t, view, "r restart, u undo, q quit")
	assert.NotContains(t, view, "[1] Let me in")
	assert.True(t, s.Ended())
	assert.Len(t, s.Transcript(), 4)

	// typing delays, plus the pause between consecutive NPC lines
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond, pauseAfterNPC + 300*time.Millisecond}, *waits)

	_, quit = enter(t, m, "q")
	assert.True(t, quit)
}

func TestInvalidInput(t *testing.T) {
	s := open(t)
	m, _ := newModel(s)
	m = start(t, m)

	m, _ = enter(t, m, "7")
	assert.Contains(t, m.View(), "Unknown choice: 7")
	m, _ = enter(t, m, "abc")
	assert.Contains(t, m.View(), "Unknown choice: abc")
	assert.NotContains(t, m.View(), "Unknown choice: 7")
	assert.False(t, s.Ended())
}

func TestUndoRedrawsHistory(t *testing.T) {
	s := open(t)
	m, _ := newModel(s)
	m = start(t, m)

	m, _ = enter(t, m, "u")
	assert.Contains(t, m.View(), "Nothing to undo")

	m, _ = enter(t, m, "2")
	assert.True(t, s.Ended())
	assert.NotContains(t, m.View(), "[2] Run")

	m, _ = enter(t, m, "u")
	assert.False(t, s.Ended())
	assert.Contains(t, m.View(), "[2] Run")
	assert.NotContains(t, m.View(), "End of scenario")
	assert.NotContains(t, m.View(), "u undo")
	assert.Len(t, s.History(), 1)
}

func TestRestartNeedsConfirmation(t *testing.T) {
	s := open(t)
	m, _ := newModel(s)
	m = start(t, m)
	m, _ = enter(t, m, "2")

	m, _ = enter(t, m, "r")
	assert.Contains(t, m.View(), "Restart scenario from beginning? [y/N]")
	m, _ = enter(t, m, "n")
	assert.True(t, s.Ended())

	m, _ = enter(t, m, "r")
	m, _ = enter(t, m, "y")
	assert.False(t, s.Ended())
	assert.Equal(t, 1, strings.Count(m.View(), "Guard: Halt!"))
	assert.Contains(t, m.View(), "[2] Run")
}

func TestRestartDisabled(t *testing.T) {
	src := strings.Replace(doorScript, "---\n=== start", "ui:\n  allowRestart: false\n---\n=== start", 1)
	_, s := openLib(t, src, "t")
	m, _ := newModel(s)
	m = start(t, m)
	assert.NotContains(t, m.View(), "r restart")

	m, _ = enter(t, m, "r")
	assert.Contains(t, m.View(), "Restart is disabled for this scenario")
}

func TestTypeaheadRunsOnceSettled(t *testing.T) {
	s := open(t)
	m, _ := newModel(s)
	m, _ = submit(t, m, "2")
	assert.Empty(t, s.Transcript())

	m = start(t, m)
	assert.True(t, s.Ended())
	assert.Contains(t, m.View(), "End of scenario")
}

func TestEndlessTextQuitsBetweenBatches(t *testing.T) {
	_, s := openLib(t, snoreScript, "snore")
	m, _ := newModel(s)
	m, quit := drive(t, m, m.Init(), 500)
	require.False(t, quit)
	assert.Greater(t, strings.Count(m.View(), "Guard: Zzz..."), 100)

	m, _ = submit(t, m, "q")
	m, quit = drive(t, m, showNow, 500)
	require.True(t, quit)
	shown := strings.Count(m.View(), "Guard: Zzz...")
	assert.Len(t, s.Transcript(), shown, "every line on screen is logged, nothing more")
}

func TestCtrlCQuitsAtOnce(t *testing.T) {
	_, s := openLib(t, snoreScript, "snore")
	m, _ := newModel(s)
	m, _ = drive(t, m, m.Init(), 10)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestQuitMidTurnKeepsUnseenLinesUnsaved(t *testing.T) {
	lib, s := openLib(t, doorScript, "t")
	m, _ := newModel(s)
	m = start(t, m)
	m, _ = enter(t, m, "1")
	require.True(t, s.Ended())
	m, _ = enter(t, m, "u")

	// the answer is chosen but only its echo reaches the screen
	m, cmd := submit(t, m, "1")
	m, _ = drive(t, m, cmd, 1)
	assert.Contains(t, m.View(), "Hero  Let me in")
	assert.NotContains(t, m.View(), "Guard: Fine.")

	again, err := lib.Open(context.Background(), "t")
	require.NoError(t, err)
	assert.Len(t, again.History(), 1)
	assert.False(t, again.Ended())
}

func TestLocalized(t *testing.T) {
	s := open(t)
	ru := i18n.New("ru")
	m, _ := newModel(s, WithLocalizer(ru), WithTheme("low-contrast"))
	m = start(t, m)
	assert.Contains(t, m.View(), ru.Tf("choosePrompt", map[string]any{"n": 2}))
	m, _ = enter(t, m, "2")
	assert.Contains(t, m.View(), ru.T("endOfScenario"))
}

func TestRunProgram(t *testing.T) {
	s := open(t)
	var out bytes.Buffer
	err := Run(context.Background(), s, strings.NewReader("1\rq\r"), &out,
		WithDelay(func(time.Duration) time.Duration { return 0 }))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Guard: Go on.")
	assert.True(t, s.Ended())
	assert.Len(t, s.Transcript(), 4)
}
