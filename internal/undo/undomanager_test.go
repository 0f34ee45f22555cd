/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import "testing"

func TestUndoRedoSwap(t *testing.T) {
	m := NewManager(0)
	m.Push([]byte("s0"))
	m.Push([]byte("s1"))

	got, ok := m.Undo([]byte("s2"))
	if !ok || string(got) != "s1" {
		t.Fatalf("undo 1 = %q %v", got, ok)
	}
	got, ok = m.Undo([]byte("s1"))
	if !ok || string(got) != "s0" {
		t.Fatalf("undo 2 = %q %v", got, ok)
	}
	if _, ok := m.Undo([]byte("s0")); ok {
		t.Fatalf("undo past the bottom succeeded")
	}
	if !m.CanRedo() || m.CanUndo() {
		t.Fatalf("unexpected stack state")
	}

	got, ok = m.Redo([]byte("s0"))
	if !ok || string(got) != "s1" {
		t.Fatalf("redo 1 = %q %v", got, ok)
	}
	got, ok = m.Redo([]byte("s1"))
	if !ok || string(got) != "s2" {
		t.Fatalf("redo 2 = %q %v", got, ok)
	}
	if _, ok := m.Redo([]byte("s2")); ok {
		t.Fatalf("redo past the top succeeded")
	}
	if !m.CanUndo() || m.CanRedo() {
		t.Fatalf("redo did not restore the undo stack")
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(0)
	m.Push([]byte("s0"))
	m.Undo([]byte("s1"))
	if !m.CanRedo() {
		t.Fatalf("expected redo entry")
	}
	m.Push([]byte("s2"))
	if m.CanRedo() {
		t.Fatalf("push must clear redo")
	}
}

func TestMaxDepthDropsOldest(t *testing.T) {
	m := NewManager(2)
	for _, s := range []string{"a", "b", "c"} {
		m.Push([]byte(s))
	}
	got, _ := m.Undo([]byte("d"))
	if string(got) != "c" {
		t.Fatalf("newest = %q", got)
	}
	got, _ = m.Undo([]byte("c"))
	if string(got) != "b" {
		t.Fatalf("second = %q", got)
	}
	if m.CanUndo() {
		t.Fatalf("oldest entry should have been dropped")
	}
}

func TestClear(t *testing.T) {
	m := NewManager(0)
	m.Push([]byte("a"))
	m.Undo([]byte("b"))
	m.Push([]byte("c"))
	m.Clear()
	if m.CanUndo() || m.CanRedo() {
		t.Fatalf("clear left entries")
	}
}
