/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatquest/internal/engine"
	applog "chatquest/internal/log"
	"chatquest/internal/script"
	"chatquest/internal/storage"
	"chatquest/internal/undo"
)

// Line is one message ready for display. Delay is the typing pause to show before
// it; player lines have none.
type Line struct {
	engine.Message
	Character script.Character
	Delay     time.Duration
}

// Turn is what a presentation layer shows after a pull: new lines, then either a
// choice set or the end. A partial turn has neither; the caller shows its lines and
// calls Advance again.
type Turn struct {
	Lines   []Line
	Choices []engine.ChoiceOption
	Ended   bool
}

// Partial reports whether the conversation continues without player input.
func (t Turn) Partial() bool { return len(t.Choices) == 0 && !t.Ended }

const (
	// maxTurnLines bounds one Advance; scripts that loop through text never settle.
	maxTurnLines = 64
	undoDepth    = 100
)

// Session is one open conversation. It is not safe for concurrent use.
//
// Pulled lines wait in a queue until the presentation reports them shown; only then
// do they enter the message log. Progress is saved whenever the queue is empty, so
// the stored state never claims lines the player has not seen.
type Session struct {
	lib     *Library
	id      string
	eng     *engine.Engine
	undo    *undo.Manager
	pending []engine.ChoiceOption
	queue   []Line
	ended   bool
	log     *slog.Logger
}

// Open parses scenario id, applies the user's typing overrides and restores saved
// progress when its message log is non-empty. Unreadable progress is dropped and the
// conversation starts fresh.
func (l *Library) Open(ctx context.Context, id string) (*Session, error) {
	src, err := l.Source(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := script.Parse(src)
	if err != nil {
		return nil, err
	}
	st := l.Settings(ctx)
	log := applog.WithScenario(l.log, id)
	eng := engine.New(doc, engine.WithTypingOverride(
		time.Duration(st.TypingMinDelayMs)*time.Millisecond,
		time.Duration(st.TypingMaxDelayMs)*time.Millisecond,
	))
	s := &Session{
		lib:  l,
		id:   id,
		eng:  eng,
		undo: undo.NewManager(undoDepth),
		log:  log,
	}
	if err := l.store.SetCurrentScenario(ctx, id); err != nil {
		log.Warn("record current scenario failed", slog.Any("err", err))
	}

	saved, ok, err := l.store.LoadProgress(ctx, id)
	switch {
	case errors.Is(err, storage.ErrCorruptProgress):
		log.Warn("saved progress unreadable, starting fresh", slog.Any("err", err))
		if err := l.store.DeleteProgress(ctx, id); err != nil {
			log.Warn("drop progress failed", slog.Any("err", err))
		}
	case err != nil:
		log.Warn("load progress failed, starting fresh", slog.Any("err", err))
	case ok && len(saved.DisplayedMessages) > 0:
		eng.Restore(saved)
		s.ended = saved.IsEnded
		log.Info("progress restored", slog.Int("messages", len(saved.DisplayedMessages)))
	}
	if len(eng.Messages()) == 0 {
		l.events.ScenarioStarted(id)
	}
	return s, nil
}

// ID is the scenario id.
func (s *Session) ID() string { return s.id }

// Engine exposes the underlying engine for read-only queries.
func (s *Session) Engine() *engine.Engine { return s.eng }

// Title is the scenario title.
func (s *Session) Title() string { return s.eng.Title() }

// AllowRestart reports whether the scenario permits restarting.
func (s *Session) AllowRestart() bool { return s.eng.AllowRestart() }

// Ended reports whether the conversation is over.
func (s *Session) Ended() bool { return s.eng.Ended() }

// Pending returns the choice set awaiting an answer, if any.
func (s *Session) Pending() []engine.ChoiceOption { return s.pending }

// History renders the message log for redisplay, without typing delays.
func (s *Session) History() []Line {
	msgs := s.eng.Messages()
	out := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		c, _ := s.eng.Character(m.Speaker)
		out = append(out, Line{Message: m, Character: c})
	}
	return out
}

// Transcript returns the message log.
func (s *Session) Transcript() []engine.Message { return s.eng.Messages() }

// CanUndo reports whether a choice can be taken back.
func (s *Session) CanUndo() bool { return s.undo.CanUndo() }

// CanRedo reports whether an undone choice can be re-applied.
func (s *Session) CanRedo() bool { return s.undo.CanRedo() }

// Advance pulls content until a choice set, the end, or maxTurnLines lines. Lines
// still queued from an earlier turn count as shown.
func (s *Session) Advance(ctx context.Context) Turn {
	s.flush(ctx)
	return s.pull(ctx)
}

func (s *Session) pull(ctx context.Context) Turn {
	var turn Turn
	for len(turn.Lines) < maxTurnLines {
		c := s.eng.CurrentContent()
		for _, t := range c.Text {
			turn.Lines = append(turn.Lines, s.line(t))
		}
		if c.Kind == engine.KindText {
			continue
		}
		if c.Kind == engine.KindEnd {
			turn.Ended = true
		} else {
			turn.Choices = c.Choices
		}
		break
	}
	s.pending = turn.Choices
	if turn.Ended && !s.ended {
		s.ended = true
		s.lib.events.ScenarioEnded(s.id)
	}
	s.queue = append(s.queue, turn.Lines...)
	if len(s.queue) == 0 {
		s.persist(ctx)
	}
	return turn
}

func (s *Session) line(t script.TextLine) Line {
	m := engine.Message{Speaker: t.Speaker, Text: t.Text, IsPlayer: s.eng.IsPlayer(t.Speaker)}
	c, _ := s.eng.Character(t.Speaker)
	l := Line{Message: m, Character: c}
	if !m.IsPlayer {
		l.Delay = s.eng.TypingDelay(t.Text)
	}
	return l
}

// Shown moves the next n queued lines into the message log, in order, and saves
// progress once none are left. It returns how many lines were recorded.
func (s *Session) Shown(ctx context.Context, n int) int {
	n = min(n, len(s.queue))
	if n <= 0 {
		return 0
	}
	for _, l := range s.queue[:n] {
		s.eng.AddMessage(l.Message)
	}
	s.queue = s.queue[n:]
	if len(s.queue) == 0 {
		s.persist(ctx)
	}
	return n
}

// Unshown is the number of pulled lines not yet reported shown.
func (s *Session) Unshown() int { return len(s.queue) }

func (s *Session) flush(ctx context.Context) { s.Shown(ctx, len(s.queue)) }

// Choose answers the pending choice set with option index. Unless the option
// suppresses its echo, its text is logged as a player line spoken by the second
// participant. The returned Turn starts with that echo line.
func (s *Session) Choose(ctx context.Context, index int) (Turn, error) {
	if index < 0 || index >= len(s.pending) {
		return Turn{}, fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	opt := s.pending[index]
	s.flush(ctx)
	s.snapshot()

	var echo []Line
	if !opt.SuppressEcho {
		player := s.eng.Document().Config.Player()
		c, _ := s.eng.Character(player)
		echo = append(echo, Line{Message: engine.Message{Speaker: player, Text: opt.Text, IsPlayer: true}, Character: c})
		s.queue = append(s.queue, echo...)
	}
	s.eng.MakeChoice(opt.Index)
	s.lib.events.ChoiceMade(s.id, opt.Index)

	turn := s.pull(ctx)
	turn.Lines = append(echo, turn.Lines...)
	return turn, nil
}

// Restart returns to the beginning and drops saved progress and undo history.
func (s *Session) Restart(ctx context.Context) (Turn, error) {
	if !s.eng.AllowRestart() {
		return Turn{}, ErrRestartNotAllowed
	}
	s.eng.Reset()
	s.queue, s.ended = nil, false
	s.undo.Clear()
	if err := s.lib.store.DeleteProgress(ctx, s.id); err != nil {
		s.log.Warn("drop progress failed", slog.Any("err", err))
	}
	s.lib.events.ScenarioRestarted(s.id)
	return s.Advance(ctx), nil
}

// Undo rewinds to the choice set answered last. The message log shrinks accordingly,
// so callers redisplay History.
func (s *Session) Undo(ctx context.Context) (Turn, error) {
	s.flush(ctx)
	prev, ok := s.undo.Undo(s.current())
	if !ok {
		return Turn{}, ErrNothingToUndo
	}
	return s.rewind(ctx, prev)
}

// Redo re-applies a choice taken back by Undo.
func (s *Session) Redo(ctx context.Context) (Turn, error) {
	s.flush(ctx)
	next, ok := s.undo.Redo(s.current())
	if !ok {
		return Turn{}, ErrNothingToUndo
	}
	return s.rewind(ctx, next)
}

func (s *Session) rewind(ctx context.Context, snap []byte) (Turn, error) {
	var st engine.State
	if err := json.Unmarshal(snap, &st); err != nil {
		return Turn{}, fmt.Errorf("decode snapshot: %w", err)
	}
	s.eng.Restore(st)
	s.queue, s.ended = nil, st.IsEnded
	return s.pull(ctx), nil
}

func (s *Session) snapshot() {
	s.undo.Push(s.current())
}

func (s *Session) current() []byte {
	blob, _ := json.Marshal(s.eng.State())
	return blob
}

// Autosave persists the current state; crash recovery calls it. While lines are
// still queued the last saved progress already is the newest consistent state.
func (s *Session) Autosave() error {
	if len(s.queue) > 0 {
		return nil
	}
	return s.lib.store.SaveProgress(context.Background(), s.id, s.eng.State())
}

func (s *Session) persist(ctx context.Context) {
	if err := s.lib.store.SaveProgress(ctx, s.id, s.eng.State()); err != nil {
		s.log.Warn("save progress failed", slog.Any("err", err))
	}
}
