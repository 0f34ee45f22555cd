/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine walks a parsed scenario as a turn-based conversation.
//
// Content is pulled: CurrentContent returns the next batch of text lines, a choice set
// or the end marker, and MakeChoice feeds the player's decision back. The engine never
// fails; dangling knot references and out-of-range choices degrade to Ended or no-ops
// and are only logged. An Engine is not safe for concurrent use.
package engine

import (
	"log/slog"
	"time"

	applog "chatquest/internal/log"
	"chatquest/internal/script"
)

const (
	DefaultTitle     = "Chat Quest"
	DefaultMinDelay  = 300 * time.Millisecond
	DefaultMaxDelay  = 2000 * time.Millisecond
	perCharacterWait = 50 * time.Millisecond
)

// ContentKind discriminates Content.
type ContentKind string

const (
	KindText            ContentKind = "text"
	KindTextWithChoices ContentKind = "textWithChoices"
	KindChoices         ContentKind = "choices"
	KindEnd             ContentKind = "end"
)

// Content is the result of one pull.
type Content struct {
	Kind    ContentKind
	Text    []script.TextLine
	Choices []ChoiceOption
}

// ChoiceOption is one entry of a choice set; Index is what MakeChoice expects.
type ChoiceOption struct {
	Index        int
	Text         string
	Target       string
	SuppressEcho bool
}

// Engine executes one Document. The Document is shared read-only; all mutable
// position lives in the engine's own State.
type Engine struct {
	doc   *script.Document
	state State
	log   *slog.Logger

	minOverride, maxOverride time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTypingOverride applies user typing bounds; zero keeps the scenario value.
func WithTypingOverride(minDelay, maxDelay time.Duration) Option {
	return func(e *Engine) { e.SetTypingOverride(minDelay, maxDelay) }
}

// New returns an engine positioned at the start of doc.
func New(doc *script.Document, opts ...Option) *Engine {
	e := &Engine{doc: doc, state: freshState(doc.Variables)}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = applog.WithComponent("engine")
	}
	e.log = applog.WithScenario(e.log, doc.Config.Dialog.ID)
	return e
}

// CurrentContent scans forward from the cursor and returns the next batch.
//
// Consecutive text lines are batched until a choice set, a divert or the end of the
// knot. A divert met after text returns the text first, so no line is lost or repeated
// across calls. Content-less diverts are followed immediately; a chain of them longer
// than the number of knots is a cycle and ends the conversation.
func (e *Engine) CurrentContent() Content {
	var text []script.TextLine
	hops := 0
	for {
		if e.state.IsEnded {
			return Content{Kind: KindEnd}
		}
		body, ok := e.doc.Knots[e.state.CurrentKnot]
		if !ok {
			e.log.Warn("divert to unknown knot, ending conversation", slog.String("knot", e.state.CurrentKnot))
			return e.end()
		}

		jumped := false
	scan:
		for i := e.state.CurrentIndex; i < len(body); i++ {
			switch it := body[i].(type) {
			case script.TextLine:
				text = append(text, it)
			case script.Choice:
				e.state.CurrentIndex = i
				kind := KindChoices
				if len(text) > 0 {
					kind = KindTextWithChoices
				}
				return Content{Kind: kind, Text: text, Choices: choiceSet(body, i)}
			case script.Divert:
				if it.Target == script.End {
					if len(text) > 0 {
						e.state.CurrentIndex = i
						return Content{Kind: KindText, Text: text}
					}
					return e.end()
				}
				e.state.CurrentKnot, e.state.CurrentIndex = it.Target, 0
				if len(text) > 0 {
					return Content{Kind: KindText, Text: text}
				}
				jumped = true
				break scan
			}
		}
		if !jumped {
			if len(text) > 0 {
				e.state.CurrentIndex = len(body)
				return Content{Kind: KindText, Text: text}
			}
			return e.end()
		}
		hops++
		if hops > len(e.doc.Knots) {
			e.log.Warn("divert cycle without content, ending conversation", slog.String("knot", e.state.CurrentKnot))
			return e.end()
		}
	}
}

// Advance resolves a divert sitting at the cursor and returns the next content.
// It is the step taken after a text batch has been shown.
func (e *Engine) Advance() Content {
	if e.state.IsEnded {
		return Content{Kind: KindEnd}
	}
	body, ok := e.doc.Knots[e.state.CurrentKnot]
	if !ok {
		e.log.Warn("divert to unknown knot, ending conversation", slog.String("knot", e.state.CurrentKnot))
		return e.end()
	}
	if i := e.state.CurrentIndex; i < len(body) {
		if d, ok := body[i].(script.Divert); ok {
			if d.Target == script.End {
				return e.end()
			}
			e.state.CurrentKnot, e.state.CurrentIndex = d.Target, 0
		}
	}
	return e.CurrentContent()
}

// MakeChoice applies the index-th option of the choice set at the cursor.
// Out-of-range indexes and calls with no choice set pending leave the state untouched.
func (e *Engine) MakeChoice(index int) {
	if e.state.IsEnded {
		return
	}
	body, ok := e.doc.Knots[e.state.CurrentKnot]
	if !ok {
		e.end()
		return
	}
	first := -1
find:
	for i := e.state.CurrentIndex; i < len(body); i++ {
		switch body[i].(type) {
		case script.Choice:
			first = i
			break find
		case script.Divert:
			break find
		}
	}
	if first < 0 {
		e.log.Debug("choice ignored, no choice set pending", slog.Int("index", index))
		return
	}
	set := choiceSet(body, first)
	if index < 0 || index >= len(set) {
		e.log.Warn("choice index out of range", slog.Int("index", index), slog.Int("choices", len(set)))
		return
	}
	switch target := set[index].Target; target {
	case script.End:
		e.state.IsEnded = true
	case "":
		e.state.CurrentIndex = len(body)
	default:
		e.state.CurrentKnot, e.state.CurrentIndex = target, 0
	}
}

func (e *Engine) end() Content {
	e.state.IsEnded = true
	return Content{Kind: KindEnd}
}

// choiceSet returns the maximal run of adjacent choices starting at body[from].
func choiceSet(body script.KnotBody, from int) []ChoiceOption {
	var out []ChoiceOption
	for i := from; i < len(body); i++ {
		c, ok := body[i].(script.Choice)
		if !ok {
			break
		}
		out = append(out, ChoiceOption{Index: len(out), Text: c.Text, Target: c.Target, SuppressEcho: c.SuppressEcho})
	}
	return out
}

// AddMessage appends m to the displayed-message log.
func (e *Engine) AddMessage(m Message) {
	e.state.DisplayedMessages = append(e.state.DisplayedMessages, m)
}

// Messages returns a copy of the displayed-message log.
func (e *Engine) Messages() []Message {
	out := make([]Message, len(e.state.DisplayedMessages))
	copy(out, e.state.DisplayedMessages)
	return out
}

// Ended reports whether the conversation has reached its end.
func (e *Engine) Ended() bool { return e.state.IsEnded }

// Reset returns to the entry knot with the initial variables and an empty log.
func (e *Engine) Reset() {
	e.state = freshState(e.doc.Variables)
}

// Restore replaces the state with a copy of s. An empty knot means the entry knot,
// nil variables mean the initial ones.
func (e *Engine) Restore(s State) {
	st := s.Clone()
	if st.CurrentKnot == "" {
		st.CurrentKnot = script.EntryKnot
	}
	if s.Variables == nil {
		st.Variables = copyVars(e.doc.Variables)
	}
	if st.CurrentIndex < 0 {
		st.CurrentIndex = 0
	}
	e.state = st
}

// State returns a deep copy of the current state.
func (e *Engine) State() State { return e.state.Clone() }

// Document returns the scenario being played.
func (e *Engine) Document() *script.Document { return e.doc }
