// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package command executes user-initiated state-changing operations against
// the wall server with deterministic before/after cache effects.
//
// Every command follows the same shape: claim an in-progress token for the
// target entity, invoke the transport, apply the documented cache update on
// success, and release the token on both paths. Commands with a legacy
// endpoint retry exactly once against it when the primary fails at the
// transport level; the legacy outcome is final.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/metrics"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
	"github.com/wallwatch/wallwatch/internal/transport"
)

// Pusher is the push-channel command surface the orchestrator needs.
// Satisfied by *push.Client.
type Pusher interface {
	Send(streamID, groupID, action string) bool
	IsConnected() bool
}

// Orchestrator runs state-changing commands against the wall server.
type Orchestrator struct {
	session  *state.Session
	push     Pusher
	tokens   *tokenSet
	validate *validator.Validate
}

// NewOrchestrator builds a command orchestrator. push may be nil when no
// push channel is configured; quick stream control then reports
// ConnectionStateError.
func NewOrchestrator(session *state.Session, push Pusher) *Orchestrator {
	return &Orchestrator{
		session:  session,
		push:     push,
		tokens:   newTokenSet(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// InProgress reports whether an operation is currently in flight for the
// entity; the dashboard uses it to disable duplicate submissions.
func (o *Orchestrator) InProgress(entityID string) bool {
	return o.tokens.held(entityID)
}

// execute runs one command body under the entity's in-progress token,
// recording outcome metrics and duration. fn reports whether the legacy
// fallback carried the command.
func (o *Orchestrator) execute(ctx context.Context, action, entityID string, fn func(context.Context) (bool, error)) error {
	if !o.tokens.begin(entityID) {
		return fmt.Errorf("%s %s: %w", action, entityID, ErrInProgress)
	}
	defer o.tokens.end(entityID)

	start := time.Now()
	fellBack, err := fn(ctx)
	metrics.CommandDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
		logging.Error().Err(err).
			Str("action", action).
			Str("entity_id", entityID).
			Msg("command failed")
	case fellBack:
		outcome = "fallback_success"
	}
	metrics.CommandsTotal.WithLabelValues(action, outcome).Inc()

	if err != nil {
		return fmt.Errorf("%s %s: %w", action, entityID, err)
	}
	return nil
}

// post issues the command against the descriptor's primary endpoint, falling
// back to the legacy endpoint exactly once on a transport-level failure.
// Application-level rejections are authoritative and never trigger the
// fallback. Returns whether the fallback carried the command.
func (o *Orchestrator) post(ctx context.Context, ep endpointDescriptor, body, result any) (bool, error) {
	err := o.session.Transport.Post(ctx, ep.Primary, body, result)
	if err == nil {
		return false, nil
	}
	if ep.Fallback == "" || !transport.IsTransportError(err) {
		return false, err
	}

	logging.Warn().Err(err).
		Str("primary", ep.Primary).
		Str("fallback", ep.Fallback).
		Msg("primary endpoint failed, trying legacy")

	ferr := o.session.Transport.Post(ctx, ep.Fallback, body, result)
	if ferr != nil {
		return false, &FallbackError{
			Primary:  ep.Primary,
			Fallback: ep.Fallback,
			PrimErr:  err,
			FallErr:  ferr,
		}
	}
	return true, nil
}

// CreateGroupRequest is the payload for CreateGroup.
type CreateGroupRequest struct {
	Name          string               `json:"name" validate:"required"`
	Description   string               `json:"description"`
	ScreenCount   int                  `json:"screen_count" validate:"required,min=1"`
	Orientation   models.Orientation   `json:"orientation" validate:"required,oneof=horizontal vertical grid"`
	GridRows      int                  `json:"grid_rows,omitempty" validate:"omitempty,min=1"`
	GridCols      int                  `json:"grid_cols,omitempty" validate:"omitempty,min=1"`
	StreamingMode models.StreamingMode `json:"streaming_mode,omitempty" validate:"omitempty,oneof=single_video_split multi_video"`
}

// CreateGroup creates a streaming group and inserts the server's view of it
// into the cache. Grid groups must satisfy rows x cols == screen count.
func (o *Orchestrator) CreateGroup(ctx context.Context, req CreateGroupRequest) (models.Group, error) {
	if err := o.validateStruct(req); err != nil {
		return models.Group{}, err
	}
	if req.Orientation == models.OrientationGrid {
		if req.GridRows < 1 || req.GridCols < 1 {
			return models.Group{}, &ValidationError{Field: "grid_rows", Message: "grid orientation requires row and column extents"}
		}
		if req.GridRows*req.GridCols != req.ScreenCount {
			return models.Group{}, &ValidationError{
				Field:   "screen_count",
				Message: fmt.Sprintf("grid %dx%d does not match screen count %d", req.GridRows, req.GridCols, req.ScreenCount),
			}
		}
	}

	var created models.Group
	err := o.execute(ctx, "create_group", req.Name, func(ctx context.Context) (bool, error) {
		fellBack, err := o.post(ctx, epCreateGroup, req, &created)
		if err != nil {
			return fellBack, err
		}
		if created.ID == "" {
			// Some server builds echo only an acknowledgement; synthesize
			// the group from the request until the next poll confirms it.
			created = models.Group{
				ID:            req.Name,
				Name:          req.Name,
				Description:   req.Description,
				ScreenCount:   req.ScreenCount,
				Orientation:   req.Orientation,
				GridRows:      req.GridRows,
				GridCols:      req.GridCols,
				StreamingMode: req.StreamingMode,
			}
		}
		o.session.Cache.UpsertGroup(created)
		return fellBack, nil
	})
	if err != nil {
		return models.Group{}, err
	}
	return created, nil
}

// DeleteGroup removes the group locally before the server call completes.
// The removal is not rolled back when the call fails; the error is surfaced
// and the next authoritative poll settles the truth.
func (o *Orchestrator) DeleteGroup(ctx context.Context, groupID string) error {
	return o.execute(ctx, "delete_group", groupID, func(ctx context.Context) (bool, error) {
		o.session.Cache.RemoveGroup(groupID)
		return o.post(ctx, epDeleteGroup, map[string]string{"group_id": groupID}, nil)
	})
}

// StartStream starts a group's stream and flips its cached streaming flag
// optimistically on success.
func (o *Orchestrator) StartStream(ctx context.Context, groupID string) error {
	return o.execute(ctx, "start_stream", groupID, func(ctx context.Context) (bool, error) {
		fellBack, err := o.post(ctx, epStartStream, map[string]string{"group_id": groupID}, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.SetStreamingOptimistic(groupID, true)
		return fellBack, nil
	})
}

// StopStream stops a group's stream and flips its cached streaming flag
// optimistically on success.
func (o *Orchestrator) StopStream(ctx context.Context, groupID string) error {
	return o.execute(ctx, "stop_stream", groupID, func(ctx context.Context) (bool, error) {
		fellBack, err := o.post(ctx, epStopStream, map[string]string{"group_id": groupID}, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.SetStreamingOptimistic(groupID, false)
		return fellBack, nil
	})
}

// QuickStreamControl sends a start/stop over the push channel. It returns
// ConnectionStateError without any network attempt when the channel is not
// connected; the command was not sent and will not be delivered later.
func (o *Orchestrator) QuickStreamControl(streamID, groupID, action string) error {
	if o.push == nil || !o.push.IsConnected() {
		metrics.CommandsTotal.WithLabelValues("quick_"+action, "failure").Inc()
		return &ConnectionStateError{Action: action}
	}
	if !o.push.Send(streamID, groupID, action) {
		metrics.CommandsTotal.WithLabelValues("quick_"+action, "failure").Inc()
		return &ConnectionStateError{Action: action}
	}
	metrics.CommandsTotal.WithLabelValues("quick_"+action, "success").Inc()
	o.session.Cache.SetStreamingOptimistic(groupID, action == models.ActionStart)
	return nil
}

// RegisterClient registers a display device, trying the legacy endpoint if
// the split API is not present on the server.
func (o *Orchestrator) RegisterClient(ctx context.Context, client models.Client) error {
	if client.ID == "" {
		return &ValidationError{Field: "client_id", Message: "required"}
	}
	return o.execute(ctx, "register_client", client.ID, func(ctx context.Context) (bool, error) {
		return o.post(ctx, epRegister, client, nil)
	})
}

// Heartbeat reports a client as alive.
func (o *Orchestrator) Heartbeat(ctx context.Context, clientID string) error {
	return o.execute(ctx, "heartbeat", clientID, func(ctx context.Context) (bool, error) {
		return o.post(ctx, epHeartbeat, map[string]string{"client_id": clientID}, nil)
	})
}

// WaitForAssignment asks the server for a client's pending assignment.
func (o *Orchestrator) WaitForAssignment(ctx context.Context, clientID string) (models.Client, error) {
	var result models.Client
	err := o.execute(ctx, "wait_for_assignment", clientID, func(ctx context.Context) (bool, error) {
		return o.post(ctx, epWaitForAssignment, map[string]string{"client_id": clientID}, &result)
	})
	return result, err
}

// AssignToGroup assigns a client to a group and mirrors the assignment in
// the cache on success.
func (o *Orchestrator) AssignToGroup(ctx context.Context, clientID, groupID string) error {
	return o.execute(ctx, "assign_to_group", clientID, func(ctx context.Context) (bool, error) {
		body := map[string]string{"client_id": clientID, "group_id": groupID}
		fellBack, err := o.post(ctx, epAssignToGroup, body, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.UpdateClient(clientID, func(c *models.Client) {
			c.GroupID = groupID
			c.ScreenNumber = nil
			c.StreamID = ""
		})
		return fellBack, nil
	})
}

// AssignToScreen pins a client to a screen index within its group.
func (o *Orchestrator) AssignToScreen(ctx context.Context, clientID string, screen int) error {
	if screen < 0 {
		return &ValidationError{Field: "screen_number", Message: "must be non-negative"}
	}
	return o.execute(ctx, "assign_to_screen", clientID, func(ctx context.Context) (bool, error) {
		body := map[string]any{"client_id": clientID, "screen_number": screen}
		fellBack, err := o.post(ctx, epAssignToScreen, body, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.UpdateClient(clientID, func(c *models.Client) {
			c.ScreenNumber = &screen
		})
		return fellBack, nil
	})
}

// AssignToStream points a client at a named sub-stream of its group.
func (o *Orchestrator) AssignToStream(ctx context.Context, clientID, streamID string) error {
	return o.execute(ctx, "assign_to_stream", clientID, func(ctx context.Context) (bool, error) {
		body := map[string]string{"client_id": clientID, "stream_id": streamID}
		fellBack, err := o.post(ctx, epAssignToStream, body, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.UpdateClient(clientID, func(c *models.Client) {
			c.StreamID = streamID
		})
		return fellBack, nil
	})
}

// AutoAssign asks the server to distribute unassigned clients across a
// group's screens. The resulting layout arrives with the next poll.
func (o *Orchestrator) AutoAssign(ctx context.Context, groupID string) error {
	return o.execute(ctx, "auto_assign", groupID, func(ctx context.Context) (bool, error) {
		return o.post(ctx, epAutoAssign, map[string]string{"group_id": groupID}, nil)
	})
}

// UnassignClient clears a client's assignments and mirrors that locally on
// success.
func (o *Orchestrator) UnassignClient(ctx context.Context, clientID string) error {
	return o.execute(ctx, "unassign_client", clientID, func(ctx context.Context) (bool, error) {
		fellBack, err := o.post(ctx, epUnassignClient, map[string]string{"client_id": clientID}, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.UpdateClient(clientID, func(c *models.Client) {
			c.GroupID = ""
			c.StreamID = ""
			c.ScreenNumber = nil
		})
		return fellBack, nil
	})
}

// RemoveClient removes the client locally before the server call completes,
// matching group deletion's optimistic-immediate semantics.
func (o *Orchestrator) RemoveClient(ctx context.Context, clientID string) error {
	return o.execute(ctx, "remove_client", clientID, func(ctx context.Context) (bool, error) {
		o.session.Cache.RemoveClient(clientID)
		return o.post(ctx, epRemoveClient, map[string]string{"client_id": clientID}, nil)
	})
}

// BulkRemoveClients removes several clients in one server call. The token
// covers the whole batch under a synthetic key so overlapping bulk removals
// cannot interleave.
func (o *Orchestrator) BulkRemoveClients(ctx context.Context, clientIDs []string) error {
	if len(clientIDs) == 0 {
		return &ValidationError{Field: "client_ids", Message: "empty"}
	}
	return o.execute(ctx, "bulk_remove_clients", "bulk", func(ctx context.Context) (bool, error) {
		for _, id := range clientIDs {
			o.session.Cache.RemoveClient(id)
		}
		return o.post(ctx, epBulkRemove, map[string][]string{"client_ids": clientIDs}, nil)
	})
}

// CleanupDisconnected asks the server to sweep disconnected clients. The
// cache reflects the sweep at the next client poll.
func (o *Orchestrator) CleanupDisconnected(ctx context.Context) error {
	return o.execute(ctx, "cleanup_disconnected", "cleanup", func(ctx context.Context) (bool, error) {
		return o.post(ctx, epCleanup, nil, nil)
	})
}

// ControlAutoCleanup toggles the server-side inactivity sweep.
func (o *Orchestrator) ControlAutoCleanup(ctx context.Context, enabled bool) error {
	return o.execute(ctx, "control_auto_cleanup", "auto_cleanup", func(ctx context.Context) (bool, error) {
		return o.post(ctx, epAutoCleanup, map[string]bool{"enabled": enabled}, nil)
	})
}

// DeleteVideo deletes a server-side video and drops it from the cached list
// on success.
func (o *Orchestrator) DeleteVideo(ctx context.Context, name string) error {
	if name == "" {
		return &ValidationError{Field: "video", Message: "name required"}
	}
	return o.execute(ctx, "delete_video", name, func(ctx context.Context) (bool, error) {
		fellBack, err := o.post(ctx, epDeleteVideo, map[string]string{"video": name}, nil)
		if err != nil {
			return fellBack, err
		}
		o.session.Cache.RemoveVideo(name)
		return fellBack, nil
	})
}

// validateStruct converts validator output into the local error type.
func (o *Orchestrator) validateStruct(v any) error {
	err := o.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return &ValidationError{
			Field:   first.Field(),
			Message: fmt.Sprintf("failed %q constraint", first.Tag()),
		}
	}
	return &ValidationError{Message: err.Error()}
}
