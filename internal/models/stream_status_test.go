// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestCoerceStreaming(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"raw true", `true`, true},
		{"raw false", `false`, false},
		{"object streaming", `{"is_streaming": true}`, true},
		{"object not streaming", `{"is_streaming": false}`, false},
		{"object missing field", `{"active_clients": 3}`, false},
		{"null", `null`, false},
		{"number", `42`, false},
		{"string", `"yes"`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceStreaming(json.RawMessage(tt.raw))
			if got != tt.want {
				t.Errorf("CoerceStreaming(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeStatusPatchBoolean(t *testing.T) {
	patch := DecodeStatusPatch(json.RawMessage(`true`), 100)

	if patch.Streaming == nil || !*patch.Streaming {
		t.Fatal("expected streaming=true")
	}
	if patch.LastUpdate != 100 {
		t.Errorf("expected fallback marker 100, got %d", patch.LastUpdate)
	}
	if patch.ActiveClients != nil {
		t.Error("boolean form must not set active clients")
	}
}

func TestDecodeStatusPatchObject(t *testing.T) {
	raw := `{"is_streaming": true, "active_clients": 4, "available_streams": ["a","b"], "current_video": "intro.mp4", "last_update": 5000}`
	patch := DecodeStatusPatch(json.RawMessage(raw), 100)

	if patch.Streaming == nil || !*patch.Streaming {
		t.Fatal("expected streaming=true")
	}
	if patch.ActiveClients == nil || *patch.ActiveClients != 4 {
		t.Error("expected active_clients=4")
	}
	if len(patch.AvailableStreams) != 2 {
		t.Errorf("expected 2 streams, got %d", len(patch.AvailableStreams))
	}
	if patch.CurrentVideo == nil || *patch.CurrentVideo != "intro.mp4" {
		t.Error("expected current_video=intro.mp4")
	}
	if patch.LastUpdate != 5000 {
		t.Errorf("own marker 5000 must beat fallback, got %d", patch.LastUpdate)
	}
}

func TestDecodeStatusPatchObjectWithoutMarker(t *testing.T) {
	patch := DecodeStatusPatch(json.RawMessage(`{"is_streaming": false}`), 777)
	if patch.LastUpdate != 777 {
		t.Errorf("expected fallback marker 777, got %d", patch.LastUpdate)
	}
	if patch.Streaming == nil || *patch.Streaming {
		t.Error("expected streaming=false")
	}
}

func TestDecodeStatusPatchGarbage(t *testing.T) {
	patch := DecodeStatusPatch(json.RawMessage(`"running"`), 42)
	if patch.Streaming == nil || *patch.Streaming {
		t.Error("non-boolean non-object must coerce to not streaming")
	}
	if patch.LastUpdate != 42 {
		t.Errorf("expected fallback marker 42, got %d", patch.LastUpdate)
	}
}

func TestUploadStatusTerminal(t *testing.T) {
	terminal := map[UploadStatus]bool{
		UploadQueued:     false,
		UploadUploading:  false,
		UploadProcessing: false,
		UploadCompleted:  true,
		UploadFailed:     true,
	}
	for status, want := range terminal {
		if status.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, status.Terminal(), want)
		}
	}
}
