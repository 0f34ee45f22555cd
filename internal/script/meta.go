/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strconv"
)

// buildConfig validates the decoded metadata and derives the typed Config.
// Checks run in a fixed order so the first problem reported is deterministic.
func buildConfig(raw map[string]any) (Config, error) {
	cfg := Config{Raw: raw, Characters: map[string]Character{}}

	dialog, ok := raw["dialog"].(map[string]any)
	if !ok || !truthy(raw["dialog"]) {
		return cfg, errMissingField("dialog")
	}
	if !truthy(dialog["id"]) {
		return cfg, errMissingField("dialog.id")
	}
	cfg.Dialog.ID = scalarString(dialog["id"])
	cfg.Dialog.Title = scalarString(dialog["title"])

	parts, ok := dialog["participants"].([]any)
	if !ok {
		return cfg, errMissingField("dialog.participants")
	}
	if len(parts) != 2 {
		return cfg, errParticipantCount()
	}
	cfg.Dialog.Participants = [2]string{scalarString(parts[0]), scalarString(parts[1])}

	chars, ok := raw["characters"].(map[string]any)
	if !ok {
		return cfg, errMissingField("characters")
	}
	for _, id := range cfg.Dialog.Participants {
		entry, present := chars[id]
		if !present || !truthy(entry) {
			return cfg, errMissingCharacter(id)
		}
		m, _ := entry.(map[string]any)
		if m == nil || !truthy(m["name"]) {
			return cfg, errMissingName(id)
		}
	}
	for id, entry := range chars {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		cfg.Characters[id] = Character{
			Name:   scalarString(m["name"]),
			Avatar: scalarString(m["avatar"]),
			Color:  scalarString(m["color"]),
		}
	}

	if ui, ok := raw["ui"].(map[string]any); ok {
		if typing, ok := ui["typing"].(map[string]any); ok {
			cfg.UI.Typing.MinDelayMs = intValue(typing["minDelayMs"])
			cfg.UI.Typing.MaxDelayMs = intValue(typing["maxDelayMs"])
		}
		if b, ok := ui["allowRestart"].(bool); ok {
			cfg.UI.AllowRestart = &b
		}
	}
	return cfg, nil
}

// truthy mirrors the presence test scenario authors expect: missing, null, false,
// zero and the empty string all count as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func intValue(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(x)
		return n
	}
	return 0
}
