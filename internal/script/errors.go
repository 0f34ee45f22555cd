/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
)

// FormatErrorKind categorizes parse failures.
type FormatErrorKind string

const (
	KindDelimiters           FormatErrorKind = "DELIMITERS"
	KindMissingField         FormatErrorKind = "MISSING_FIELD"
	KindParticipantCount     FormatErrorKind = "PARTICIPANT_COUNT"
	KindMissingCharacter     FormatErrorKind = "MISSING_CHARACTER"
	KindMissingCharacterName FormatErrorKind = "MISSING_CHARACTER_NAME"
	KindMissingStartKnot     FormatErrorKind = "MISSING_START_KNOT"
)

// FormatError reports a malformed scenario source. Field is set for KindMissingField,
// Participant for the character kinds.
type FormatError struct {
	Kind        FormatErrorKind
	Field       string
	Participant string
	Message     string
}

func (e *FormatError) Error() string { return e.Message }

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// AsFormatError extracts the *FormatError from err.
func AsFormatError(err error) (*FormatError, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func errMissingField(field string) *FormatError {
	return &FormatError{Kind: KindMissingField, Field: field, Message: "Missing required field: " + field}
}

func errMissingCharacter(id string) *FormatError {
	return &FormatError{Kind: KindMissingCharacter, Participant: id, Message: fmt.Sprintf("Missing character definition: %s", id)}
}

func errMissingName(id string) *FormatError {
	return &FormatError{Kind: KindMissingCharacterName, Participant: id, Message: fmt.Sprintf("Missing name for character: %s", id)}
}

func errDelimiters() *FormatError {
	return &FormatError{Kind: KindDelimiters, Message: "Invalid format: missing YAML front matter delimiters (---)"}
}

func errParticipantCount() *FormatError {
	return &FormatError{
		Kind:    KindParticipantCount,
		Field:   "dialog.participants",
		Message: "dialog.participants must have exactly 2 elements",
	}
}

func errMissingStart() *FormatError {
	return &FormatError{Kind: KindMissingStartKnot, Message: "Missing required knot: " + EntryKnot}
}
