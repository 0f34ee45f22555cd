/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package i18n provides the localized strings of chatquest (English and Russian) on top of
// go-i18n message bundles.
package i18n

import (
	"embed"
	"errors"
	"log/slog"
	"os"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	applog "chatquest/internal/log"
	"chatquest/internal/script"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Supported lists the available languages; the first one is the fallback.
var Supported = []language.Tag{language.English, language.Russian}

var bundle = newBundle()

func newBundle() *goi18n.Bundle {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	for _, name := range []string{"locales/active.en.yaml", "locales/active.ru.yaml"} {
		data, err := localeFS.ReadFile(name)
		if err == nil {
			_, err = b.ParseMessageFileBytes(data, name)
		}
		if err != nil {
			applog.WithComponent("i18n").Error("load message file failed", slog.String("file", name), slog.Any("err", err))
		}
	}
	return b
}

// Localizer renders message ids in one language.
type Localizer struct {
	lang string
	loc  *goi18n.Localizer
}

// New returns a localizer for lang ("en", "ru", or any BCP 47 tag); unknown languages
// fall back to English.
func New(lang string) *Localizer {
	code := Normalize(lang)
	return &Localizer{lang: code, loc: goi18n.NewLocalizer(bundle, code, language.English.String())}
}

// Lang is the normalized language code.
func (l *Localizer) Lang() string { return l.lang }

// T renders id without template data.
func (l *Localizer) T(id string) string { return l.Tf(id, nil) }

// Tf renders id with data substituted into its {{.name}} placeholders.
// A message missing in every language renders as id itself.
func (l *Localizer) Tf(id string, data map[string]any) string {
	s, err := l.loc.Localize(&goi18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if s != "" {
		return s
	}
	if err != nil {
		applog.WithComponent("i18n").Debug("missing message", slog.String("id", id), slog.String("lang", l.lang))
	}
	return id
}

// Error renders err for a scenario author. Parse failures are mapped to their localized
// message, prefixed by the generic parse-error title; other errors pass through.
func (l *Localizer) Error(err error) string {
	if err == nil {
		return ""
	}
	fe, ok := script.AsFormatError(err)
	if !ok {
		return err.Error()
	}
	var detail string
	switch fe.Kind {
	case script.KindDelimiters:
		detail = l.T("invalidFormat")
	case script.KindMissingField:
		detail = l.Tf("missingField", map[string]any{"field": fe.Field})
	case script.KindParticipantCount:
		detail = l.T("participantCount")
	case script.KindMissingCharacter:
		detail = l.Tf("missingCharacter", map[string]any{"id": fe.Participant})
	case script.KindMissingCharacterName:
		detail = l.Tf("missingCharacterName", map[string]any{"id": fe.Participant})
	case script.KindMissingStartKnot:
		detail = l.T("missingStartKnot")
	default:
		detail = fe.Message
	}
	return l.T("parseError") + ": " + detail
}

var matcher = language.NewMatcher(Supported)

// Normalize maps any language tag to a supported base language code.
func Normalize(lang string) string {
	tag, _ := language.MatchStrings(matcher, cleanLocale(lang))
	base, _ := tag.Base()
	return base.String()
}

// IsSupported reports whether lang names one of the Supported languages exactly.
func IsSupported(lang string) bool {
	t, err := language.Parse(cleanLocale(lang))
	if err != nil {
		return false
	}
	base, _ := t.Base()
	for _, s := range Supported {
		if sb, _ := s.Base(); sb == base {
			return true
		}
	}
	return false
}

// Detect picks the UI language: saved if supported, else the first of LC_ALL,
// LC_MESSAGES and LANG that is supported, else English.
func Detect(saved string) string {
	if saved != "" && IsSupported(saved) {
		return Normalize(saved)
	}
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" && IsSupported(v) {
			return Normalize(v)
		}
	}
	return "en"
}

// cleanLocale turns POSIX locales like "ru_RU.UTF-8" into "ru-RU".
func cleanLocale(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "C" || s == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(s, "_", "-")
}

// ErrUnsupported is returned by Validate for languages without a message file.
var ErrUnsupported = errors.New("unsupported language")

// Validate returns ErrUnsupported unless lang is one of Supported.
func Validate(lang string) error {
	if !IsSupported(lang) {
		return ErrUnsupported
	}
	return nil
}
