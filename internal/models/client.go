// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package models

import "time"

// ClientStatus is the activity state of a display client as reported by the
// wall server's heartbeat tracking.
type ClientStatus string

const (
	ClientActive       ClientStatus = "active"
	ClientInactive     ClientStatus = "inactive"
	ClientDisconnected ClientStatus = "disconnected"
)

// Client is a registered display device.
//
// A client holds at most one group assignment and at most one stream
// assignment at a time; ScreenNumber, when assigned, is unique within the
// client's group. Registration and heartbeats originate from the device
// itself; assignment changes originate from operator commands.
type Client struct {
	ID          string       `json:"client_id"`
	Hostname    string       `json:"hostname"`
	IPAddress   string       `json:"ip_address"`
	DisplayName string       `json:"display_name"`
	Platform    string       `json:"platform"`
	Status      ClientStatus `json:"status"`
	LastSeen    time.Time    `json:"last_seen"`

	// Assignment fields; empty/nil when unassigned.
	GroupID      string `json:"group_id,omitempty"`
	StreamID     string `json:"stream_id,omitempty"`
	ScreenNumber *int   `json:"screen_number,omitempty"`
}

// Assigned reports whether the client is assigned to any group.
func (c *Client) Assigned() bool {
	return c.GroupID != ""
}

// ClientList is the wire shape of /api/clients/list and the legacy
// /get_clients endpoint.
type ClientList struct {
	Clients []Client `json:"clients"`
}
