/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeMetaNesting(t *testing.T) {
	got := decodeMeta(`
# comment
dialog:
  id: demo
  participants:
    - npc
    - "player"
  extra:
    deep: 1.5
characters:
  npc:
    name: 'Ann'
ui:
  allowRestart: true
  note: ~
top: after
`)
	assert.Equal(t, map[string]any{
		"dialog": map[string]any{
			"id":           "demo",
			"participants": []any{"npc", "player"},
			"extra":        map[string]any{"deep": 1.5},
		},
		"characters": map[string]any{"npc": map[string]any{"name": "Ann"}},
		"ui":         map[string]any{"allowRestart": true, "note": nil},
		"top":        "after",
	}, got)
}

func TestDecodeScalar(t *testing.T) {
	cases := map[string]any{
		`"quoted: x"`: "quoted: x",
		`'single'`:    "single",
		`"a\nb"`:      `a\nb`,
		"true":        true,
		"false":       false,
		"null":        nil,
		"~":           nil,
		"-12":         -12,
		"3.25":        3.25,
		"1.":          "1.",
		"plain text":  "plain text",
		`"`:           `"`,
	}
	for in, want := range cases {
		assert.Equal(t, want, decodeScalar(in), "input %q", in)
	}
}

func TestDecodeInlineList(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, decodeInlineList("[a, b]"))
	assert.Equal(t, []any{"x, y", 2, true}, decodeInlineList(`["x, y", 2, true]`))
	assert.Equal(t, []any{}, decodeInlineList("[ ]"))
}

func TestSplitSource(t *testing.T) {
	meta, narr, err := splitSource("intro\n---\na: 1\n  ---  \n\n=== start ===\n\n")
	assert.NoError(t, err)
	assert.Equal(t, "a: 1", meta)
	assert.Equal(t, "=== start ===", narr)
}
