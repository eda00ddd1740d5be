// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package command

// endpointDescriptor declares a command's server endpoint together with its
// optional legacy fallback. One generic executor consumes these; commands
// never hand-roll their own retry pairs.
type endpointDescriptor struct {
	Primary  string
	Fallback string
}

// Endpoint descriptors for every orchestrated command. Only registration,
// wait-for-assignment, assignment and auto-assignment carry legacy
// fallbacks; the rest were introduced after the API split and have a single
// canonical path.
var (
	epRegister = endpointDescriptor{
		Primary:  "/api/clients/register",
		Fallback: "/register_client",
	}
	epWaitForAssignment = endpointDescriptor{
		Primary:  "/api/clients/wait_for_assignment",
		Fallback: "/wait_for_assignment",
	}
	epAssignToGroup = endpointDescriptor{
		Primary:  "/api/clients/assign_to_group",
		Fallback: "/assign_to_group",
	}
	epAssignToScreen = endpointDescriptor{
		Primary:  "/api/clients/assign_to_screen",
		Fallback: "/assign_to_screen",
	}
	epAssignToStream = endpointDescriptor{
		Primary:  "/api/clients/assign_to_stream",
		Fallback: "/assign_to_stream",
	}
	epAutoAssign = endpointDescriptor{
		Primary:  "/api/clients/auto_assign",
		Fallback: "/auto_assign",
	}

	epHeartbeat      = endpointDescriptor{Primary: "/api/clients/heartbeat"}
	epUnassignClient = endpointDescriptor{Primary: "/api/clients/unassign_client"}
	epRemoveClient   = endpointDescriptor{Primary: "/api/clients/remove_client"}
	epBulkRemove     = endpointDescriptor{Primary: "/api/clients/bulk_remove_clients"}
	epCleanup        = endpointDescriptor{Primary: "/api/clients/cleanup_disconnected_clients"}
	epAutoCleanup    = endpointDescriptor{Primary: "/api/clients/control_auto_cleanup"}

	epCreateGroup = endpointDescriptor{Primary: "/create_group"}
	epDeleteGroup = endpointDescriptor{Primary: "/delete_group"}
	epStartStream = endpointDescriptor{Primary: "/start_group_srt"}
	epStopStream  = endpointDescriptor{Primary: "/stop_group_stream"}
	epDeleteVideo = endpointDescriptor{Primary: "/delete_video"}
)
