/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package term

import (
	"github.com/charmbracelet/lipgloss"

	"chatquest/internal/script"
)

type styles struct {
	r        *lipgloss.Renderer
	lowColor bool
	title    lipgloss.Style
	text     lipgloss.Style
	player   lipgloss.Style
	choice   lipgloss.Style
	dim      lipgloss.Style
	banner   lipgloss.Style
	errStyle lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, theme string) styles {
	s := styles{
		r:        r,
		lowColor: theme == "low-contrast",
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		text:     r.NewStyle(),
		player:   r.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("28")),
		choice:   r.NewStyle().Foreground(lipgloss.Color("214")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("242")),
		banner:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("196")),
	}
	if s.lowColor {
		s.title = r.NewStyle().Bold(true)
		s.player = r.NewStyle().Bold(true)
		s.choice = r.NewStyle()
		s.banner = r.NewStyle().Bold(true)
		s.errStyle = r.NewStyle()
	}
	return s
}

// speaker styles a character name with its scenario color unless the theme is low contrast.
func (s styles) speaker(c script.Character) lipgloss.Style {
	st := s.r.NewStyle().Bold(true)
	if c.Color != "" && !s.lowColor {
		st = st.Foreground(lipgloss.Color(c.Color))
	}
	return st
}
