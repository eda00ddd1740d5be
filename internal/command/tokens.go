// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package command

import "sync"

// tokenSet tracks per-entity in-progress markers. A token is held for the
// full duration of one command and released on both the success and the
// failure path; a dangling token would permanently lock its entity out of
// further commands.
type tokenSet struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newTokenSet() *tokenSet {
	return &tokenSet{active: make(map[string]struct{})}
}

// begin claims the token for key. Returns false when an operation is
// already in flight for that key.
func (t *tokenSet) begin(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.active[key]; busy {
		return false
	}
	t.active[key] = struct{}{}
	return true
}

// end releases the token for key.
func (t *tokenSet) end(key string) {
	t.mu.Lock()
	delete(t.active, key)
	t.mu.Unlock()
}

// held reports whether key currently has an operation in flight.
func (t *tokenSet) held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.active[key]
	return busy
}
