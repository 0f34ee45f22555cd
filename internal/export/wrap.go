/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strings"

	"golang.org/x/image/font"
)

// wrap breaks s on spaces so that each line fits maxWidth pixels in face. A single
// word wider than maxWidth gets a line of its own. Explicit newlines are kept.
func wrap(face font.Face, s string, maxWidth int) []string {
	d := &font.Drawer{Face: face}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		cur := ""
		for _, word := range strings.Fields(para) {
			cand := word
			if cur != "" {
				cand = cur + " " + word
			}
			if cur != "" && maxWidth > 0 && d.MeasureString(cand).Round() > maxWidth {
				out = append(out, cur)
				cur = word
				continue
			}
			cur = cand
		}
		out = append(out, cur)
	}
	return out
}
