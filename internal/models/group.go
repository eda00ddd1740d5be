// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package models

// Orientation describes how a group's screens are laid out.
type Orientation string

const (
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
	OrientationGrid       Orientation = "grid"
)

// StreamingMode selects how a group's pipeline feeds its screens.
type StreamingMode string

const (
	// ModeSingleSplit splits one source video across all screens.
	ModeSingleSplit StreamingMode = "single_video_split"

	// ModeMultiStream drives each screen from its own sub-stream.
	ModeMultiStream StreamingMode = "multi_video"
)

// Group is a logical collection of screens driven by one streaming pipeline.
//
// For grid orientation, ScreenCount equals GridRows * GridCols. Streaming
// transitions only through start/stop commands or server-side discovery
// reflected by a status refresh.
type Group struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	ScreenCount   int           `json:"screen_count"`
	Orientation   Orientation   `json:"orientation"`
	GridRows      int           `json:"grid_rows,omitempty"`
	GridCols      int           `json:"grid_cols,omitempty"`
	StreamingMode StreamingMode `json:"streaming_mode"`
	Streaming     bool          `json:"streaming"`
	ClientCount   int           `json:"client_count"`
	// AvailableStreams lists the sub-stream names clients may attach to.
	AvailableStreams []string `json:"available_streams,omitempty"`
	CurrentVideo     string   `json:"current_video,omitempty"`
	Ports            []int    `json:"ports,omitempty"`
}

// GroupList is the wire shape of /get_groups.
type GroupList struct {
	Groups []Group `json:"groups"`
}

// VideoList is the wire shape of /get_videos.
type VideoList struct {
	Videos []string `json:"videos"`
}
