// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/wallwatch/wallwatch/internal/command"
	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/transport"
	"github.com/wallwatch/wallwatch/internal/upload"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger files spill to disk.
const maxUploadMemory = 32 << 20

// CreateGroup creates a streaming group through the orchestrator.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	if h.Commands == nil {
		respondError(w, http.StatusServiceUnavailable, "COMMANDS_DISABLED", "command orchestrator not configured")
		return
	}
	var req command.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	group, err := h.Commands.CreateGroup(r.Context(), req)
	if err != nil {
		respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status:   "ok",
		Data:     group,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// DeleteGroup removes a group; the cache drops it immediately.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.DeleteGroup(r.Context(), chi.URLParam(r, "id"))
	})
}

// StartGroup starts a group's stream.
func (h *Handler) StartGroup(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.StartStream(r.Context(), chi.URLParam(r, "id"))
	})
}

// StopGroup stops a group's stream.
func (h *Handler) StopGroup(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.StopStream(r.Context(), chi.URLParam(r, "id"))
	})
}

// QuickControl sends a start/stop over the push channel without a REST
// round trip. Fails fast when the channel is down.
func (h *Handler) QuickControl(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		var req struct {
			StreamID string `json:"stream_id"`
			Action   string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &command.ValidationError{Message: "invalid JSON body"}
		}
		return h.Commands.QuickStreamControl(req.StreamID, chi.URLParam(r, "id"), req.Action)
	})
}

// AssignClient routes one assignment request to the matching orchestrator
// command based on which field the body carries.
func (h *Handler) AssignClient(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		clientID := chi.URLParam(r, "id")
		var req struct {
			GroupID      string `json:"group_id"`
			StreamID     string `json:"stream_id"`
			ScreenNumber *int   `json:"screen_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &command.ValidationError{Message: "invalid JSON body"}
		}
		switch {
		case req.GroupID != "":
			return h.Commands.AssignToGroup(r.Context(), clientID, req.GroupID)
		case req.StreamID != "":
			return h.Commands.AssignToStream(r.Context(), clientID, req.StreamID)
		case req.ScreenNumber != nil:
			return h.Commands.AssignToScreen(r.Context(), clientID, *req.ScreenNumber)
		default:
			return &command.ValidationError{Message: "one of group_id, stream_id, screen_number required"}
		}
	})
}

// UnassignClient clears a client's assignments.
func (h *Handler) UnassignClient(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.UnassignClient(r.Context(), chi.URLParam(r, "id"))
	})
}

// RemoveClient removes a client; the cache drops it immediately.
func (h *Handler) RemoveClient(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.RemoveClient(r.Context(), chi.URLParam(r, "id"))
	})
}

// ClientHeartbeat relays a liveness report for one display device.
func (h *Handler) ClientHeartbeat(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.Heartbeat(r.Context(), chi.URLParam(r, "id"))
	})
}

// ClientAssignment asks the wall server for a client's pending assignment
// and returns it.
func (h *Handler) ClientAssignment(w http.ResponseWriter, r *http.Request) {
	if h.Commands == nil {
		respondError(w, http.StatusServiceUnavailable, "COMMANDS_DISABLED", "command orchestrator not configured")
		return
	}
	client, err := h.Commands.WaitForAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     client,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// BulkRemoveClients removes a set of clients in one server call.
func (h *Handler) BulkRemoveClients(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		var req struct {
			ClientIDs []string `json:"client_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &command.ValidationError{Message: "invalid JSON body"}
		}
		return h.Commands.BulkRemoveClients(r.Context(), req.ClientIDs)
	})
}

// AutoCleanup toggles the wall server's inactivity sweep.
func (h *Handler) AutoCleanup(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &command.ValidationError{Message: "invalid JSON body"}
		}
		return h.Commands.ControlAutoCleanup(r.Context(), req.Enabled)
	})
}

// CleanupClients triggers the server-side disconnected-client sweep.
func (h *Handler) CleanupClients(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.CleanupDisconnected(r.Context())
	})
}

// DeleteVideo deletes a server-side video.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, func(r *http.Request) error {
		return h.Commands.DeleteVideo(r.Context(), chi.URLParam(r, "name"))
	})
}

// UploadVideos accepts a multipart batch and runs it through the
// sequential pipeline, blocking until the batch completes so the caller
// gets the full result in one response.
func (h *Handler) UploadVideos(w http.ResponseWriter, r *http.Request) {
	if h.Pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "UPLOADS_DISABLED", "upload pipeline not configured")
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart body")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Debug().Err(err).Msg("multipart cleanup failed")
		}
	}()

	headers := r.MultipartForm.File["videos"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "no files in field \"videos\"")
		return
	}

	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, upload.File{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return openPart(fh) },
		})
	}

	result, err := h.Pipeline.RunWithCallback(r.Context(), files, nil)
	if err != nil {
		respondError(w, http.StatusConflict, "UPLOAD_REJECTED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     result,
		Metadata: models.Metadata{Timestamp: time.Now(), Count: result.Summary.Total},
	})
}

func openPart(fh *multipart.FileHeader) (io.ReadCloser, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// runCommand wraps a write handler with the shared error-to-status mapping.
func (h *Handler) runCommand(w http.ResponseWriter, r *http.Request, fn func(*http.Request) error) {
	if h.Commands == nil {
		respondError(w, http.StatusServiceUnavailable, "COMMANDS_DISABLED", "command orchestrator not configured")
		return
	}
	if err := fn(r); err != nil {
		respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondCommandError maps the command error taxonomy onto HTTP statuses.
func respondCommandError(w http.ResponseWriter, err error) {
	var (
		verr *command.ValidationError
		cerr *command.ConnectionStateError
		aerr *transport.APIError
	)
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, command.ErrInProgress):
		respondError(w, http.StatusConflict, "IN_PROGRESS", err.Error())
	case errors.As(err, &cerr):
		respondError(w, http.StatusServiceUnavailable, "NOT_CONNECTED", cerr.Error())
	case errors.As(err, &aerr):
		respondError(w, http.StatusBadGateway, "SERVER_REJECTED", aerr.Message)
	default:
		respondError(w, http.StatusBadGateway, "COMMAND_FAILED", err.Error())
	}
}
