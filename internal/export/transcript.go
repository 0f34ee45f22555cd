/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a conversation transcript to PDF and PNG.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatquest/internal/engine"
	"chatquest/internal/script"
)

// Entry is one rendered message.
type Entry struct {
	Speaker  string
	Name     string
	Text     string
	IsPlayer bool
	Color    color.RGBA
}

// Transcript is the printable form of a message log.
type Transcript struct {
	Title    string
	Entries  []Entry
	Exported time.Time
}

var defaultInk = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}

// FromMessages resolves speakers through lookup. Unknown speakers keep their id as
// name; characters without a valid color use the default ink.
func FromMessages(title string, msgs []engine.Message, lookup func(id string) (script.Character, bool)) Transcript {
	t := Transcript{Title: title, Exported: time.Now()}
	for _, m := range msgs {
		e := Entry{Speaker: m.Speaker, Name: m.Speaker, Text: m.Text, IsPlayer: m.IsPlayer, Color: defaultInk}
		if lookup != nil {
			if c, ok := lookup(m.Speaker); ok {
				if c.Name != "" {
					e.Name = c.Name
				}
				if col, ok := parseHexColor(c.Color); ok {
					e.Color = col
				}
			}
		}
		t.Entries = append(t.Entries, e)
	}
	return t
}

// parseHexColor accepts #rgb and #rrggbb.
func parseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

// WriteFile creates path (and its directory) and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
