// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/wallwatch/wallwatch/internal/command"
	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
	"github.com/wallwatch/wallwatch/internal/upload"
)

// Handler serves the dashboard's local API: snapshot reads from the
// session cache plus write endpoints delegating to the command
// orchestrator and the upload pipeline. Optional collaborators left nil
// report their subsystem as absent instead of failing.
type Handler struct {
	Session     *state.Session
	Commands    *command.Orchestrator
	Pipeline    *upload.Pipeline
	PushState   func() string
	UploadTasks func() []models.UploadTask
}

// NewHandler builds an API handler over the session.
func NewHandler(session *state.Session) *Handler {
	return &Handler{Session: session}
}

// Health reports daemon liveness, push channel state and wall server
// reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	pushState := "disabled"
	if h.PushState != nil {
		pushState = h.PushState()
	}

	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	reachable := h.Session.Transport.Ping(pingCtx) == nil

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "ok",
		Data: map[string]any{
			"push_channel":     pushState,
			"server_reachable": reachable,
			"clients":          len(h.Session.Cache.Clients()),
			"groups":           len(h.Session.Cache.Groups()),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Clients returns the reconciled client list.
func (h *Handler) Clients(w http.ResponseWriter, r *http.Request) {
	clients := h.Session.Cache.Clients()
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     clients,
		Metadata: models.Metadata{Timestamp: time.Now(), Count: len(clients)},
	})
}

// Groups returns the reconciled group list.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	groups := h.Session.Cache.Groups()
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     groups,
		Metadata: models.Metadata{Timestamp: time.Now(), Count: len(groups)},
	})
}

// GroupStatus returns the most recently merged stream status for one group.
func (h *Handler) GroupStatus(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	status, ok := h.Session.Cache.StreamStatus(groupID)
	if !ok {
		respondError(w, http.StatusNotFound, "GROUP_NOT_FOUND",
			"no status known for group "+groupID)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     status,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Videos returns the server-side video list.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	videos := h.Session.Cache.Videos()
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     videos,
		Metadata: models.Metadata{Timestamp: time.Now(), Count: len(videos)},
	})
}

// Uploads returns the active upload task set.
func (h *Handler) Uploads(w http.ResponseWriter, r *http.Request) {
	var tasks []models.UploadTask
	if h.UploadTasks != nil {
		tasks = h.UploadTasks()
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     tasks,
		Metadata: models.Metadata{Timestamp: time.Now(), Count: len(tasks)},
	})
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Error:    &models.APIError{Code: code, Message: message},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
