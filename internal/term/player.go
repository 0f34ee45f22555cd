/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package term plays a session in a terminal: history, paced NPC lines, numbered
// choices and the r/u/q commands.
package term

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatquest/internal/i18n"
	applog "chatquest/internal/log"
	"chatquest/internal/session"
)

// pauseAfterNPC separates consecutive NPC lines.
const pauseAfterNPC = 200 * time.Millisecond

type phase int

const (
	phaseStart phase = iota
	phaseTyping
	phaseInput
	phaseConfirm
)

type (
	startMsg struct{}
	showMsg  struct{}
)

// Model is the bubbletea model of one conversation. Lines of a turn appear one at a
// time after their typing delay; each is reported to the session once on screen.
// Commands entered while lines are still typing wait until the turn has settled;
// ctrl+c quits at once.
type Model struct {
	ctx      context.Context
	sess     *session.Session
	loc      *i18n.Localizer
	renderer *lipgloss.Renderer
	theme    string
	st       styles
	delay    func(time.Duration) time.Duration
	log      *slog.Logger

	input     textinput.Model
	phase     phase
	turn      session.Turn
	queue     []session.Line
	lastNPC   bool
	lines     []string
	status    string
	typeahead []string
	quitting  bool
	endShown  bool
}

// Option configures a Model.
type Option func(*Model)

func WithLocalizer(loc *i18n.Localizer) Option { return func(m *Model) { m.loc = loc } }

// WithTheme selects "default" or "low-contrast" styling.
func WithTheme(theme string) Option { return func(m *Model) { m.theme = theme } }

// WithRenderer sets the lipgloss renderer; Run uses one bound to its output.
func WithRenderer(r *lipgloss.Renderer) Option { return func(m *Model) { m.renderer = r } }

// WithDelay maps a wanted pause to the one actually waited. Returning zero or less
// shows the line at once.
func WithDelay(fn func(time.Duration) time.Duration) Option {
	return func(m *Model) { m.delay = fn }
}

// NewModel builds the player for sess. ctx bounds the session calls made from Update.
func NewModel(ctx context.Context, sess *session.Session, opts ...Option) Model {
	m := Model{
		ctx:      ctx,
		sess:     sess,
		loc:      i18n.New("en"),
		renderer: lipgloss.DefaultRenderer(),
		theme:    "default",
		delay:    func(d time.Duration) time.Duration { return d },
		log:      applog.WithScenario(applog.WithComponent("term"), sess.ID()),
	}
	for _, o := range opts {
		o(&m)
	}
	m.st = newStyles(m.renderer, m.theme)

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 64
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.Focus()
	m.input = ti
	return m
}

// Run plays sess until the user quits. Progress is saved by the session as lines are
// shown, so quitting never loses what was on screen.
func Run(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer, opts ...Option) error {
	opts = append([]Option{WithRenderer(lipgloss.NewRenderer(out))}, opts...)
	p := tea.NewProgram(NewModel(ctx, sess, opts...),
		tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return startMsg{} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		m.lines = m.history()
		return m.play(m.sess.Advance(m.ctx))
	case showMsg:
		return m.show()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter", "ctrl+j":
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if m.phase == phaseStart || m.phase == phaseTyping {
				m.typeahead = append(m.typeahead, cmd)
				return m, nil
			}
			return m.run(cmd)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) play(turn session.Turn) (Model, tea.Cmd) {
	m.turn = turn
	m.queue = append([]session.Line(nil), turn.Lines...)
	m.phase = phaseTyping
	return m, m.next()
}

func (m Model) next() tea.Cmd {
	if len(m.queue) == 0 {
		return showNow
	}
	d := m.queue[0].Delay
	if m.lastNPC {
		d += pauseAfterNPC
	}
	if d > 0 {
		d = m.delay(d)
	}
	if d <= 0 {
		return showNow
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return showMsg{} })
}

func showNow() tea.Msg { return showMsg{} }

func (m Model) show() (Model, tea.Cmd) {
	if m.phase != phaseTyping {
		return m, nil
	}
	if len(m.queue) == 0 {
		return m.settle()
	}
	l := m.queue[0]
	m.queue = m.queue[1:]
	m.lines = append(m.lines, m.line(l))
	m.sess.Shown(m.ctx, 1)
	m.lastNPC = !l.IsPlayer
	return m, m.next()
}

// settle runs once every line of the turn is on screen. A conversation that goes on
// without input can only be left by a pending quit.
func (m Model) settle() (Model, tea.Cmd) {
	if m.turn.Partial() {
		if slices.ContainsFunc(m.typeahead, isQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m.play(m.sess.Advance(m.ctx))
	}
	if m.turn.Ended && !m.endShown {
		m.endShown = true
		m.lines = append(m.lines, "", m.st.banner.Render("-- "+m.loc.T("endOfScenario")+" --"))
	}
	m.lastNPC = false
	m.phase = phaseInput
	return m.drain()
}

// drain runs commands typed ahead until one starts a new turn or quits.
func (m Model) drain() (Model, tea.Cmd) {
	for len(m.typeahead) > 0 {
		cmd := m.typeahead[0]
		m.typeahead = m.typeahead[1:]
		var c tea.Cmd
		if m, c = m.run(cmd); c != nil || m.phase == phaseTyping {
			return m, c
		}
	}
	return m, nil
}

func (m Model) run(cmd string) (Model, tea.Cmd) {
	m.status = ""
	lc := strings.ToLower(cmd)
	if m.phase == phaseConfirm {
		m.phase = phaseInput
		if lc != "y" && lc != "yes" && lc != strings.ToLower(m.loc.T("yes")) {
			return m, nil
		}
		turn, err := m.sess.Restart(m.ctx)
		if err != nil {
			m.status = m.st.errStyle.Render(m.loc.Error(err))
			return m, nil
		}
		m.lines, m.endShown, m.lastNPC = nil, false, false
		return m.play(turn)
	}

	if isQuit(lc) {
		m.quitting = true
		return m, tea.Quit
	}
	switch lc {
	case "r", "restart":
		if !m.sess.AllowRestart() {
			m.status = m.st.errStyle.Render(m.loc.T("restartNotAllowed"))
			return m, nil
		}
		m.phase = phaseConfirm
		return m, nil
	case "u", "undo":
		turn, err := m.sess.Undo(m.ctx)
		if errors.Is(err, session.ErrNothingToUndo) {
			m.status = m.st.errStyle.Render(m.loc.T("nothingToUndo"))
			return m, nil
		} else if err != nil {
			m.status = m.st.errStyle.Render(err.Error())
			return m, nil
		}
		m.lines, m.endShown = m.history(), false
		return m.play(turn)
	case "":
		return m, nil
	}

	n, err := strconv.Atoi(lc)
	if err != nil || n < 1 || n > len(m.turn.Choices) {
		m.status = m.st.errStyle.Render(m.loc.Tf("invalidChoice", map[string]any{"input": cmd}))
		return m, nil
	}
	turn, err := m.sess.Choose(m.ctx, n-1)
	if err != nil {
		m.status = m.st.errStyle.Render(err.Error())
		return m, nil
	}
	m.log.Debug("choice made", slog.Int("index", n-1))
	return m.play(turn)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.st.title.Render(m.sess.Title()))
	b.WriteString("\n\n")
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if m.quitting {
		return b.String()
	}

	switch m.phase {
	case phaseInput:
		if !m.turn.Ended {
			for i, c := range m.turn.Choices {
				fmt.Fprintf(&b, "  %s %s\n", m.st.choice.Render(fmt.Sprintf("[%d]", i+1)), c.Text)
			}
		}
		m.writeStatus(&b)
		b.WriteString(m.st.dim.Render(m.prompt()))
		b.WriteByte('\n')
	case phaseConfirm:
		m.writeStatus(&b)
		fmt.Fprintf(&b, "%s [%s/N]\n", m.loc.T("confirmRestart"), m.loc.T("yes"))
	}
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) writeStatus(b *strings.Builder) {
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteByte('\n')
	}
}

// prompt lists what can be typed now; u only shows up when there is a choice to take back.
func (m Model) prompt() string {
	var parts []string
	if len(m.turn.Choices) > 0 && !m.turn.Ended {
		parts = append(parts, m.loc.Tf("choosePrompt", map[string]any{"n": len(m.turn.Choices)}))
	}
	if m.sess.AllowRestart() {
		parts = append(parts, m.loc.T("hintRestart"))
	}
	if m.sess.CanUndo() {
		parts = append(parts, m.loc.T("hintUndo"))
	}
	parts = append(parts, m.loc.T("hintQuit"))
	return strings.Join(parts, ", ")
}

func (m Model) history() []string {
	var out []string
	for _, l := range m.sess.History() {
		out = append(out, m.line(l))
	}
	return out
}

func (m Model) line(l session.Line) string {
	name := l.Character.Name
	if name == "" {
		name = l.Speaker
	}
	if l.IsPlayer {
		if name == "" {
			name = m.loc.T("player")
		}
		return m.st.player.Render(" "+name+" ") + " " + l.Text
	}
	if name == "" {
		return m.st.text.Render(l.Text)
	}
	return m.st.speaker(l.Character).Render(name) + ": " + m.st.text.Render(l.Text)
}

func isQuit(cmd string) bool {
	cmd = strings.ToLower(cmd)
	return cmd == "q" || cmd == "quit"
}
