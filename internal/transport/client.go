// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package transport wraps HTTP access to the wall server's REST surface.
//
// The adapter normalizes every failure into one of two error shapes:
//
//   - *TransportError: unreachable host, non-2xx status without a JSON error
//     body, or a non-JSON body on a 2xx response
//   - *APIError: a reachable server that answered with a well-formed JSON
//     error payload
//
// The adapter never retries; retry and fallback policy belongs to callers
// (the poller's circuit breaker and the command orchestrator's legacy
// endpoint fallback).
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxResponseBytes caps response body reads. Status payloads are small;
// anything larger indicates a misbehaving server.
const maxResponseBytes = 8 << 20

// Client is the REST transport adapter for one wall server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a transport client for the given base URL. The timeout bounds
// each individual request; uploads use their own per-call deadline.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes one request against the given endpoint and returns the raw
// JSON payload. A nil body sends no request body; any other body is JSON
// encoded. Endpoint is an absolute path such as "/get_groups".
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Message: "read response: " + err.Error(), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeErrorBody(resp.StatusCode, payload)
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		// Some write endpoints answer 200 with an empty body.
		return json.RawMessage("null"), nil
	}
	if !json.Valid(payload) {
		return nil, &TransportError{
			Message:    "non-JSON response body",
			StatusCode: resp.StatusCode,
			Raw:        truncate(string(payload), 512),
		}
	}

	return json.RawMessage(payload), nil
}

// Get executes a GET request and decodes the payload into result.
func (c *Client) Get(ctx context.Context, endpoint string, result any) error {
	raw, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return decodeInto(raw, result)
}

// Post executes a POST request with a JSON body and decodes the payload into
// result. Pass nil result to discard the payload.
func (c *Client) Post(ctx context.Context, endpoint string, body, result any) error {
	raw, err := c.Do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	return decodeInto(raw, result)
}

// decodeInto unmarshals raw into result, tolerating a nil result.
func decodeInto(raw json.RawMessage, result any) error {
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &TransportError{Message: "decode response: " + err.Error(), Raw: truncate(string(raw), 512)}
	}
	return nil
}

// Ping probes the wall server's liveness endpoint. Any 2xx counts as alive;
// the endpoint may answer with a bare string rather than JSON.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode}
	}
	return nil
}

// errorBody is the JSON error envelope the server uses for application-level
// failures. Either field may carry the message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// decodeErrorBody distinguishes "reachable but application-level error" from
// "non-JSON failure" for a non-2xx response.
func decodeErrorBody(status int, payload []byte) error {
	var eb errorBody
	if json.Unmarshal(payload, &eb) == nil {
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		if msg != "" {
			return &APIError{Message: msg, StatusCode: status}
		}
	}
	return &TransportError{
		Message:    http.StatusText(status),
		StatusCode: status,
		Raw:        truncate(string(payload), 512),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
