// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_groups" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"groups": []}`))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	raw, err := client.Do(context.Background(), http.MethodGet, "/get_groups", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"groups": []}` {
		t.Errorf("unexpected payload %s", raw)
	}
}

func TestDoApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "group not found"}`))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.Do(context.Background(), http.MethodGet, "/streaming_status/x", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "group not found" || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected error contents: %+v", apiErr)
	}
}

func TestDoApplicationErrorMessageField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message": "already streaming"}`))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.Do(context.Background(), http.MethodPost, "/start_group_srt", map[string]string{"group_id": "g1"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "already streaming" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestDoNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.Do(context.Background(), http.MethodGet, "/ping", nil)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if terr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", terr.StatusCode)
	}
}

func TestDoNonJSONSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.Do(context.Background(), http.MethodGet, "/ping", nil)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError for non-JSON 2xx body, got %v", err)
	}
}

func TestDoUnreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second)
	_, err := client.Do(context.Background(), http.MethodGet, "/ping", nil)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if terr.StatusCode != 0 {
		t.Errorf("unreachable host must report status 0, got %d", terr.StatusCode)
	}
}

func TestDoEmptySuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	raw, err := client.Do(context.Background(), http.MethodPost, "/delete_group", map[string]string{"group_id": "g1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "null" {
		t.Errorf("empty body must normalize to null, got %s", raw)
	}
}

func TestGetDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"videos": ["a.mp4"]}`))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	var result struct {
		Videos []string `json:"videos"`
	}
	if err := client.Get(context.Background(), "/get_videos", &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Videos) != 1 || result.Videos[0] != "a.mp4" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Liveness endpoint answers plain text, not JSON.
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("ping against healthy server: %v", err)
	}

	down := New("http://127.0.0.1:1", time.Second)
	err := down.Ping(context.Background())
	if !IsTransportError(err) {
		t.Errorf("ping against unreachable server = %v, want TransportError", err)
	}
}
