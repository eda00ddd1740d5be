// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package models defines the domain types shared across Wallwatch: display
// clients, screen groups, per-group stream status, upload tasks, and the
// frames exchanged over the wall server's push-event channel.
//
// The wall server is the source of truth for clients, groups and statuses;
// these types carry its wire representation plus the versioning markers the
// reconciliation cache uses to order competing updates.
package models
