/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// A Document is the result of Parse: the scenario metadata, the knot graph and the
// initial variable table. A Document is never modified after Parse returns it.
type Document struct {
	Config    Config
	Knots     map[string]KnotBody
	Variables map[string]any
}

const (
	// EntryKnot is the knot every conversation starts in.
	EntryKnot = "start"
	// End is the reserved divert target that terminates a conversation.
	End = "END"
)

// KnotBody is the ordered content of one knot.
type KnotBody []Item

// Item is one of TextLine, Choice or Divert.
type Item interface {
	item()
}

// TextLine is a line of dialogue. Speaker is empty when no speaker was assigned yet.
type TextLine struct {
	Speaker string
	Text    string
}

// Choice is a player-selectable option. An empty Target means the choice has no jump
// and falls through to the end of its knot.
//
// SuppressEcho is set for bracketed labels ("+ [Label]"): the label is shown as a button
// only and never echoed into the message log as a player line.
type Choice struct {
	Text         string
	Target       string
	SuppressEcho bool
}

// Divert is an unconditional jump to a knot or to End.
type Divert struct {
	Target string
}

func (TextLine) item() {}
func (Choice) item()   {}
func (Divert) item()   {}

// Config is the typed view of the metadata block.
type Config struct {
	Dialog     Dialog
	Characters map[string]Character
	UI         UI

	// Raw holds the decoded metadata block, including keys the typed view does not know.
	Raw map[string]any
}

type Dialog struct {
	ID    string
	Title string
	// Participants[0] is the non-player character, Participants[1] the player.
	Participants [2]string
}

type Character struct {
	Name   string
	Avatar string
	Color  string
}

type UI struct {
	Typing Typing
	// AllowRestart is nil unless the metadata sets ui.allowRestart to a boolean.
	AllowRestart *bool
}

// Typing holds the optional typing-indicator bounds in milliseconds; zero means unset.
type Typing struct {
	MinDelayMs int
	MaxDelayMs int
}

// NPC returns the non-player participant id.
func (c Config) NPC() string { return c.Dialog.Participants[0] }

// Player returns the player participant id.
func (c Config) Player() string { return c.Dialog.Participants[1] }
