/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script parses chat scenarios: a metadata block between two "---" lines
// followed by a narrative block of knots.
//
//	---
//	dialog:
//	  id: demo
//	  participants: [npc, player]
//	characters:
//	  npc:
//	    name: Anna
//	  player:
//	    name: You
//	---
//	VAR mood = "calm"
//	=== start ===
//	~ speaker = "npc"
//	Hi!
//	+ [Wave back] -> bye
//	+ Who are you?
//	  -> END
//	=== bye ===
//	-> END
package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Parse decodes src into a Document. All failures are *FormatError.
func Parse(src string) (*Document, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	meta, narrative, err := splitSource(src)
	if err != nil {
		return nil, err
	}
	cfg, err := buildConfig(decodeMeta(meta))
	if err != nil {
		return nil, err
	}
	knots, vars := decodeNarrative(narrative)
	if _, ok := knots[EntryKnot]; !ok {
		return nil, errMissingStart()
	}
	return &Document{Config: cfg, Knots: knots, Variables: vars}, nil
}

// GenerateID returns a fresh scenario id for sources whose dialog.id cannot be used.
func GenerateID() string {
	return "scenario_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Dump renders d as stable, human-readable text. Knots and map keys are sorted.
func Dump(d *Document) string {
	var b strings.Builder
	c := d.Config
	fmt.Fprintf(&b, "dialog %q title=%q participants=[%s %s]\n", c.Dialog.ID, c.Dialog.Title, c.NPC(), c.Player())
	for _, id := range sortedKeys(c.Characters) {
		ch := c.Characters[id]
		fmt.Fprintf(&b, "character %s name=%q", id, ch.Name)
		if ch.Avatar != "" {
			fmt.Fprintf(&b, " avatar=%q", ch.Avatar)
		}
		if ch.Color != "" {
			fmt.Fprintf(&b, " color=%q", ch.Color)
		}
		b.WriteByte('\n')
	}
	if t := c.UI.Typing; t.MinDelayMs != 0 || t.MaxDelayMs != 0 {
		fmt.Fprintf(&b, "typing min=%d max=%d\n", t.MinDelayMs, t.MaxDelayMs)
	}
	if c.UI.AllowRestart != nil {
		fmt.Fprintf(&b, "allowRestart %t\n", *c.UI.AllowRestart)
	}
	for _, name := range sortedKeys(d.Variables) {
		fmt.Fprintf(&b, "var %s = %#v\n", name, d.Variables[name])
	}
	for _, name := range sortedKeys(d.Knots) {
		fmt.Fprintf(&b, "knot %s\n", name)
		for _, it := range d.Knots[name] {
			switch it := it.(type) {
			case TextLine:
				sp := it.Speaker
				if sp == "" {
					sp = "-"
				}
				fmt.Fprintf(&b, "  text %s: %s\n", sp, it.Text)
			case Choice:
				echo := "echo"
				if it.SuppressEcho {
					echo = "silent"
				}
				fmt.Fprintf(&b, "  choice %q -> %s (%s)\n", it.Text, orNone(it.Target), echo)
			case Divert:
				fmt.Fprintf(&b, "  divert -> %s\n", orNone(it.Target))
			}
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
