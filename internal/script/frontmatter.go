/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strconv"
	"strings"
)

// splitSource cuts src at the first two lines consisting solely of "---".
// The narrative part is returned trimmed.
func splitSource(src string) (meta, narrative string, err error) {
	lines := strings.Split(src, "\n")
	start, end := -1, -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "---" {
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		end = i
		break
	}
	if start < 0 || end < 0 {
		return "", "", errDelimiters()
	}
	meta = strings.Join(lines[start+1:end], "\n")
	narrative = strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return meta, narrative, nil
}

// frame is an open container on the decoder stack. A frame whose key has been
// promoted to a sequence appends to parent[key] instead of writing into m.
type frame struct {
	m      map[string]any
	list   bool
	indent int
	key    string
	parent map[string]any
}

// decodeMeta decodes the restricted indentation-based markup of the metadata block
// into nested map[string]any / []any / scalar values.
func decodeMeta(src string) map[string]any {
	root := map[string]any{}
	stack := []*frame{{m: root, indent: -1}}

	for _, raw := range strings.Split(src, "\n") {
		raw = strings.TrimRight(raw, "\r")
		content := strings.TrimSpace(raw)
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		top := stack[len(stack)-1]

		if strings.HasPrefix(content, "- ") {
			v := decodeScalar(content[2:])
			switch {
			case top.list:
				top.parent[top.key] = append(top.parent[top.key].([]any), v)
			case top.parent != nil && top.key != "":
				top.parent[top.key] = []any{v}
				top.list = true
			}
			continue
		}

		colon := strings.Index(content, ":")
		if colon < 0 || top.list {
			continue
		}
		key := strings.TrimSpace(content[:colon])
		val := strings.TrimSpace(content[colon+1:])
		switch {
		case val == "" || val == "|" || val == ">":
			child := map[string]any{}
			top.m[key] = child
			stack = append(stack, &frame{m: child, indent: indent, key: key, parent: top.m})
		case strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]"):
			top.m[key] = decodeInlineList(val)
		default:
			top.m[key] = decodeScalar(val)
		}
	}
	return root
}

// decodeScalar recognizes quoted strings (no escape processing), true/false,
// null/~, integers and decimals. Anything else is returned as the raw string.
func decodeScalar(s string) any {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null", "~":
		return nil
	}
	if isInteger(s) {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// decodeInlineList splits "[a, 'b, c']" on commas outside quotes.
func decodeInlineList(s string) []any {
	s = strings.TrimSpace(s[1 : len(s)-1])
	out := []any{}
	if s == "" {
		return out
	}
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && c == ',':
			out = append(out, decodeScalar(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, decodeScalar(cur.String()))
	}
	return out
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return s != "" && strings.Trim(s, "0123456789") == ""
}

func isDecimal(s string) bool {
	whole, frac, ok := strings.Cut(s, ".")
	return ok && isInteger(whole) && frac != "" && strings.Trim(frac, "0123456789") == ""
}
