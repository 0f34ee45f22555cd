/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"
)

var (
	reVar      = regexp.MustCompile(`^VAR\s+(\w+)\s*=\s*(.*)$`)
	reKnot     = regexp.MustCompile(`^===\s*(\w+)\s*===?$`)
	reSpeaker  = regexp.MustCompile(`^~\s*speaker\s*=\s*["']?(\w+)["']?$`)
	reBracketC = regexp.MustCompile(`^\+\s*\[(.*?)\]\s*(?:->\s*(\w+))?$`)
	rePlainC   = regexp.MustCompile(`^\+\s*(.*?)\s*(?:->\s*(\w+))?$`)
)

// decodeNarrative scans the narrative block into knots and initial variables.
// Lines before the first knot header are ignored except VAR declarations. A header that
// does not match "=== name ===" is skipped and its lines stay with the open knot.
// Duplicate knots and variables overwrite earlier definitions.
func decodeNarrative(src string) (map[string]KnotBody, map[string]any) {
	knots := map[string]KnotBody{}
	vars := map[string]any{}

	var (
		current string
		body    KnotBody
		open    bool
		speaker string
	)
	flush := func() {
		if open {
			knots[current] = body
		}
	}

	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "VAR ") {
			if m := reVar.FindStringSubmatch(line); m != nil {
				vars[m[1]] = decodeScalar(m[2])
			}
			continue
		}
		if strings.HasPrefix(line, "===") {
			m := reKnot.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			flush()
			current, body, open = m[1], KnotBody{}, true
			continue
		}
		if !open {
			continue
		}
		body, speaker = appendLine(body, line, speaker)
	}
	flush()
	return knots, vars
}

// appendLine classifies one trimmed knot line and appends the resulting item, if any.
// The speaker cursor is threaded through explicitly and returned updated.
func appendLine(body KnotBody, line, speaker string) (KnotBody, string) {
	switch {
	case strings.HasPrefix(line, "~"):
		if m := reSpeaker.FindStringSubmatch(line); m != nil {
			speaker = m[1]
		}
	case strings.HasPrefix(line, "+"):
		if c, ok := parseChoice(line); ok {
			body = append(body, c)
		}
	case strings.HasPrefix(line, "->"):
		target := strings.TrimSpace(line[2:])
		if n := len(body); n > 0 {
			if c, ok := body[n-1].(Choice); ok && c.Target == "" {
				c.Target = target
				body[n-1] = c
				break
			}
		}
		body = append(body, Divert{Target: target})
	case strings.HasPrefix(line, "//"), strings.HasPrefix(line, "/*"):
	default:
		body = append(body, TextLine{Speaker: speaker, Text: line})
	}
	return body, speaker
}

func parseChoice(line string) (Choice, bool) {
	if m := reBracketC.FindStringSubmatch(line); m != nil {
		return Choice{Text: strings.TrimSpace(m[1]), Target: m[2], SuppressEcho: true}, true
	}
	if m := rePlainC.FindStringSubmatch(line); m != nil {
		return Choice{Text: strings.TrimSpace(m[1]), Target: m[2]}, true
	}
	return Choice{}, false
}
