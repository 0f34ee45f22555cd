/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"maps"
	"slices"

	"chatquest/internal/script"
)

// Message is one entry of the displayed-message log.
type Message struct {
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	IsPlayer bool   `json:"isPlayer"`
}

// State is the complete mutable position of a conversation. Its JSON form is what
// gets persisted as progress.
type State struct {
	CurrentKnot       string         `json:"currentKnot"`
	CurrentIndex      int            `json:"currentIndex"`
	Variables         map[string]any `json:"variables"`
	IsEnded           bool           `json:"isEnded"`
	DisplayedMessages []Message      `json:"displayedMessages"`
}

func freshState(initial map[string]any) State {
	return State{
		CurrentKnot:       script.EntryKnot,
		Variables:         copyVars(initial),
		DisplayedMessages: []Message{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Variables = copyVars(s.Variables)
	c.DisplayedMessages = slices.Clone(s.DisplayedMessages)
	if c.DisplayedMessages == nil {
		c.DisplayedMessages = []Message{}
	}
	return c
}

// copyVars copies one level deep; variable values are scalars.
func copyVars(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}
