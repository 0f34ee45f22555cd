/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded in-memory undo/redo stacks of conversation snapshots.
package undo

import "sync"

// Manager holds the undo and redo stacks of one conversation. Snapshots are opaque
// state blobs. Manager is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	maxDepth int
	undo     [][]byte
	redo     [][]byte
}

// NewManager keeps at most maxDepth undo entries, dropping the oldest first.
// Zero means unlimited.
func NewManager(maxDepth int) *Manager {
	return &Manager{maxDepth: maxDepth}
}

// Push records the state before a change. It clears the redo stack.
func (m *Manager) Push(s []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, s)
	m.redo = nil
	m.trimLocked()
}

// Undo pops the newest snapshot and parks current on the redo stack.
func (m *Manager) Undo(current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return nil, false
	}
	s := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, current)
	return s, true
}

// Redo pops the newest redo snapshot and pushes current back onto the undo stack.
func (m *Manager) Redo(current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return nil, false
	}
	s := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, current)
	m.trimLocked()
	return s, true
}

// CanUndo reports whether an undo entry exists.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo reports whether a redo entry exists.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
}

func (m *Manager) trimLocked() {
	if m.maxDepth <= 0 {
		return
	}
	if extra := len(m.undo) - m.maxDepth; extra > 0 {
		m.undo = append([][]byte(nil), m.undo[extra:]...)
	}
}
