/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"chatquest/internal/engine"
)

func sampleState() engine.State {
	return engine.State{
		CurrentKnot:  "coffee",
		CurrentIndex: 2,
		Variables:    map[string]any{"mood": "calm"},
		DisplayedMessages: []engine.Message{
			{Speaker: "npc", Text: "Hi"},
			{Speaker: "player", Text: "Hello", IsPlayer: true},
		},
	}
}

func TestProgressRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if _, ok, err := s.LoadProgress(ctx, "a"); ok || err != nil {
		t.Fatalf("expected no progress, got ok=%v err=%v", ok, err)
	}
	want := sampleState()
	if err := s.SaveProgress(ctx, "a", want); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	want.IsEnded = true
	if err := s.SaveProgress(ctx, "a", want); err != nil {
		t.Fatalf("SaveProgress overwrite: %v", err)
	}
	got, ok, err := s.LoadProgress(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("LoadProgress: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if err := s.DeleteProgress(ctx, "a"); err != nil {
		t.Fatalf("DeleteProgress: %v", err)
	}
	if _, ok, _ := s.LoadProgress(ctx, "a"); ok {
		t.Fatalf("progress survived delete")
	}
}

func TestCorruptProgressDetected(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for name, raw := range map[string]string{
		"not json":       `{"currentKnot":`,
		"wrong type":     `{"currentKnot": 5, "currentIndex": 0, "displayedMessages": []}`,
		"negative index": `{"currentKnot": "start", "currentIndex": -1, "displayedMessages": []}`,
		"missing field":  `{"currentKnot": "start"}`,
		"bad message":    `{"currentKnot": "start", "currentIndex": 0, "displayedMessages": [{"speaker": "a"}]}`,
	} {
		if _, err := s.exec(ctx, `INSERT INTO progress(scenario_id, state, updated_at) VALUES (?, ?, 'x')
ON CONFLICT(scenario_id) DO UPDATE SET state = excluded.state`, "a", raw); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
		_, ok, err := s.LoadProgress(ctx, "a")
		if ok || !errors.Is(err, ErrCorruptProgress) {
			t.Fatalf("%s: ok=%v err=%v, want ErrCorruptProgress", name, ok, err)
		}
	}
}

func TestValidateProgressAcceptsEngineOutput(t *testing.T) {
	raw := []byte(`{"currentKnot":"start","currentIndex":0,"variables":null,"isEnded":false,"displayedMessages":null}`)
	if err := ValidateProgress(raw); err != nil {
		t.Fatalf("ValidateProgress: %v", err)
	}
}
