// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package command

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
	"github.com/wallwatch/wallwatch/internal/transport"
)

func newTestOrchestrator(serverURL string) (*Orchestrator, *state.Session) {
	session := state.NewSession(state.NewCache(), transport.New(serverURL, 5*time.Second))
	return NewOrchestrator(session, nil), session
}

type fakePusher struct {
	connected bool
	sent      []string
}

func (f *fakePusher) Send(streamID, groupID, action string) bool {
	if !f.connected {
		return false
	}
	f.sent = append(f.sent, action)
	return true
}

func (f *fakePusher) IsConnected() bool { return f.connected }

func TestCreateGroupGridValidation(t *testing.T) {
	o, _ := newTestOrchestrator("http://127.0.0.1:1")

	_, err := o.CreateGroup(context.Background(), CreateGroupRequest{
		Name:        "Lobby",
		ScreenCount: 4,
		Orientation: models.OrientationGrid,
		GridRows:    2,
		GridCols:    3,
	})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError for 2x3 != 4, got %v", err)
	}
}

func TestCreateGroupGridMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_group" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id": "g1", "name": "Lobby", "screen_count": 4, "orientation": "grid", "grid_rows": 2, "grid_cols": 2}`))
	}))
	defer server.Close()

	o, session := newTestOrchestrator(server.URL)
	group, err := o.CreateGroup(context.Background(), CreateGroupRequest{
		Name:        "Lobby",
		ScreenCount: 4,
		Orientation: models.OrientationGrid,
		GridRows:    2,
		GridCols:    2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if group.ScreenCount != 4 {
		t.Errorf("screen count = %d, want 4", group.ScreenCount)
	}
	if _, ok := session.Cache.Group("g1"); !ok {
		t.Error("created group not inserted into cache")
	}
}

func TestCreateGroupMissingNameNeverReachesNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	o, _ := newTestOrchestrator(server.URL)
	_, err := o.CreateGroup(context.Background(), CreateGroupRequest{ScreenCount: 2, Orientation: models.OrientationHorizontal})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("validation failure reached the transport layer")
	}
}

func TestDeleteGroupOptimisticNoRollback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "delete failed"}`))
	}))
	defer server.Close()

	o, session := newTestOrchestrator(server.URL)
	session.Cache.ReplaceGroups([]models.Group{{ID: "g1"}})

	err := o.DeleteGroup(context.Background(), "g1")
	if err == nil {
		t.Fatal("expected surfaced error from failed delete")
	}
	// The optimistic removal stands even though the call failed.
	if _, ok := session.Cache.Group("g1"); ok {
		t.Error("failed delete re-inserted the group")
	}
}

func TestStartStreamFlipsFlagOnSuccessOnly(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "no clients"}`))
			return
		}
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	o, session := newTestOrchestrator(server.URL)
	session.Cache.ReplaceGroups([]models.Group{{ID: "g1"}})

	if err := o.StartStream(context.Background(), "g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st, _ := session.Cache.StreamStatus("g1"); !st.Streaming {
		t.Error("streaming flag not flipped on success")
	}

	fail.Store(true)
	if err := o.StopStream(context.Background(), "g1"); err == nil {
		t.Fatal("expected error")
	}
	if st, _ := session.Cache.StreamStatus("g1"); !st.Streaming {
		t.Error("failed command mutated cache state")
	}
}

func TestTokenClearedOnBothPaths(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "nope"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	o, _ := newTestOrchestrator(server.URL)

	if err := o.AutoAssign(context.Background(), "g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.InProgress("g1") {
		t.Error("token dangling after success")
	}

	fail.Store(true)
	if err := o.AutoAssign(context.Background(), "g1"); err == nil {
		t.Fatal("expected error")
	}
	if o.InProgress("g1") {
		t.Error("token dangling after failure")
	}
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	o, _ := newTestOrchestrator(server.URL)

	done := make(chan error, 1)
	go func() { done <- o.AutoAssign(context.Background(), "g1") }()

	deadline := time.Now().Add(time.Second)
	for !o.InProgress("g1") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	err := o.AutoAssign(context.Background(), "g1")
	if !errors.Is(err, ErrInProgress) {
		t.Errorf("overlapping command: got %v, want ErrInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first command failed: %v", err)
	}
}

func TestFallbackLegacySucceeds(t *testing.T) {
	var legacyHit atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/clients/assign_to_group":
			// Old server build: the split API does not exist.
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`not found`))
		case "/assign_to_group":
			legacyHit.Store(true)
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	o, session := newTestOrchestrator(server.URL)
	session.Cache.ReplaceClients([]models.Client{{ID: "c1"}})

	if err := o.AssignToGroup(context.Background(), "c1", "g1"); err != nil {
		t.Fatalf("fallback path failed: %v", err)
	}
	if !legacyHit.Load() {
		t.Error("legacy endpoint never attempted")
	}
	c1, _ := session.Cache.Client("c1")
	if c1.GroupID != "g1" {
		t.Error("assignment not mirrored in cache")
	}
}

func TestWaitForAssignmentLegacyFallback(t *testing.T) {
	var legacyHit atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/clients/wait_for_assignment":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`not found`))
		case "/wait_for_assignment":
			legacyHit.Store(true)
			w.Write([]byte(`{"client_id": "c1", "group_id": "g1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	o, _ := newTestOrchestrator(server.URL)
	client, err := o.WaitForAssignment(context.Background(), "c1")
	if err != nil {
		t.Fatalf("fallback path failed: %v", err)
	}
	if !legacyHit.Load() {
		t.Error("legacy endpoint never attempted")
	}
	if client.GroupID != "g1" {
		t.Errorf("assignment group = %q, want g1", client.GroupID)
	}
}

func TestFallbackBothFailSingleCombinedError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`))
	}))
	defer server.Close()

	o, _ := newTestOrchestrator(server.URL)
	err := o.RegisterClient(context.Background(), models.Client{ID: "c1"})

	var ferr *FallbackError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FallbackError, got %T: %v", err, err)
	}
	// One attempt each, never a loop.
	if calls.Load() != 2 {
		t.Errorf("server saw %d attempts, want 2", calls.Load())
	}
}

func TestFallbackNotTriggeredByApplicationError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "already registered"}`))
	}))
	defer server.Close()

	o, _ := newTestOrchestrator(server.URL)
	err := o.RegisterClient(context.Background(), models.Client{ID: "c1"})

	if !transport.IsAPIError(err) {
		t.Fatalf("expected APIError passthrough, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("application error must not trigger the legacy fallback, saw %d calls", calls.Load())
	}
}

func TestRemoveClientOptimistic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	o, session := newTestOrchestrator(server.URL)
	session.Cache.ReplaceClients([]models.Client{{ID: "c1"}, {ID: "c2"}})

	if err := o.RemoveClient(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := session.Cache.Client("c1"); ok {
		t.Error("c1 still present after removal")
	}
	if _, ok := session.Cache.Client("c2"); !ok {
		t.Error("unrelated client removed")
	}
}

func TestQuickStreamControl(t *testing.T) {
	session := state.NewSession(state.NewCache(), transport.New("http://127.0.0.1:1", time.Second))
	pusher := &fakePusher{}
	o := NewOrchestrator(session, pusher)

	err := o.QuickStreamControl("s1", "g1", models.ActionStart)
	var cerr *ConnectionStateError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConnectionStateError while disconnected, got %v", err)
	}

	pusher.connected = true
	if err := o.QuickStreamControl("s1", "g1", models.ActionStart); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pusher.sent) != 1 || pusher.sent[0] != models.ActionStart {
		t.Errorf("unexpected push sends: %v", pusher.sent)
	}
	if st, _ := session.Cache.StreamStatus("g1"); !st.Streaming {
		t.Error("quick control did not flip the streaming flag")
	}
}

func TestDeleteVideoRemovesFromList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	o, session := newTestOrchestrator(server.URL)
	session.Cache.SetVideos([]string{"a.mp4", "b.mp4"})

	if err := o.DeleteVideo(context.Background(), "a.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos := session.Cache.Videos(); len(videos) != 1 || videos[0] != "b.mp4" {
		t.Errorf("unexpected videos: %v", videos)
	}
}
