// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package models

import (
	"github.com/goccy/go-json"
)

// Push-event frame types delivered over the wall server's WebSocket channel.
const (
	EventStreamUpdate          = "stream_update"
	EventClientUpdate          = "client_update"
	EventConnectionEstablished = "connection_established"
	EventSuccess               = "success"
	EventError                 = "error"
)

// PushEvent is one inbound frame from the push channel.
//
// Data carries the type-specific payload: a status value for stream_update
// (decoded with DecodeStatusPatch), a ClientList for client_update. Success
// and error frames reference a previously sent command via RequestID.
type PushEvent struct {
	Type      string          `json:"type"`
	StreamID  string          `json:"stream_id,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// StreamControl is the outbound command frame sent over the push channel.
type StreamControl struct {
	Type      string `json:"type"`
	StreamID  string `json:"stream_id"`
	GroupID   string `json:"group_id"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Stream control actions accepted by the wall server.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)
