// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package state

import (
	"github.com/wallwatch/wallwatch/internal/transport"
)

// Session is the explicit per-application context object shared by the
// polling scheduler, push client, command orchestrator and upload pipeline.
//
// It is created exactly once, in main, and passed by reference to each
// constructor. Shared mutable state (the cache) and the transport adapter
// live here rather than in package-level variables, so tests can build
// isolated sessions and component lifetimes are explicit.
type Session struct {
	Cache     *Cache
	Transport *transport.Client
}

// NewSession builds a session from a cache and a transport adapter.
func NewSession(cache *Cache, tc *transport.Client) *Session {
	return &Session{
		Cache:     cache,
		Transport: tc,
	}
}
