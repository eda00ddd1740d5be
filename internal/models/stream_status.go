// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package models

import (
	"github.com/goccy/go-json"
)

// StreamStatus is the server-reported live state of one group's stream.
//
// LastUpdate is a unix-millisecond marker assigned when the update was
// produced. The reconciliation cache compares markers, not arrival order,
// so a late-arriving poll result never overwrites a newer push update.
type StreamStatus struct {
	GroupID          string   `json:"group_id"`
	Streaming        bool     `json:"is_streaming"`
	ActiveClients    int      `json:"active_clients"`
	AvailableStreams []string `json:"available_streams,omitempty"`
	CurrentVideo     string   `json:"current_video,omitempty"`
	LastUpdate       int64    `json:"last_update"`
}

// StreamStatusPatch carries a partial status update. Nil fields leave their
// counterparts in the cached record untouched.
type StreamStatusPatch struct {
	Streaming        *bool
	ActiveClients    *int
	AvailableStreams []string
	CurrentVideo     *string
	LastUpdate       int64
}

// rawStatus mirrors the variant wire shapes the server emits for a status:
// either a bare boolean or an object carrying is_streaming plus metadata.
type rawStatus struct {
	IsStreaming      *bool    `json:"is_streaming"`
	ActiveClients    *int     `json:"active_clients"`
	AvailableStreams []string `json:"available_streams"`
	CurrentVideo     *string  `json:"current_video"`
	LastUpdate       int64    `json:"last_update"`
}

// CoerceStreaming reduces any status value the server may emit to a plain
// boolean. The server returns either a raw boolean or a status object; the
// object form is reduced via is_streaming, and anything else is false.
// This rule is applied everywhere a status is read, never assumed.
func CoerceStreaming(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var obj rawStatus
	if err := json.Unmarshal(raw, &obj); err == nil && obj.IsStreaming != nil {
		return *obj.IsStreaming
	}

	return false
}

// DecodeStatusPatch parses a raw status value into a partial update,
// applying the boolean coercion rule. The returned patch carries the
// update's own marker when present, otherwise the supplied fallback.
func DecodeStatusPatch(raw json.RawMessage, fallbackMarker int64) StreamStatusPatch {
	patch := StreamStatusPatch{LastUpdate: fallbackMarker}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		patch.Streaming = &b
		return patch
	}

	var obj rawStatus
	if err := json.Unmarshal(raw, &obj); err != nil {
		// Non-boolean, non-object value: coerce to not-streaming.
		streaming := false
		patch.Streaming = &streaming
		return patch
	}

	if obj.IsStreaming != nil {
		patch.Streaming = obj.IsStreaming
	} else {
		streaming := false
		patch.Streaming = &streaming
	}
	patch.ActiveClients = obj.ActiveClients
	patch.AvailableStreams = obj.AvailableStreams
	patch.CurrentVideo = obj.CurrentVideo
	if obj.LastUpdate > 0 {
		patch.LastUpdate = obj.LastUpdate
	}

	return patch
}
