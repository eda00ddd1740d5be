// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package transport

import (
	"errors"
	"fmt"
)

// TransportError reports a failure to obtain a well-formed response from the
// wall server: the host was unreachable, the response status was non-2xx
// without a JSON error body, or the body was not JSON.
type TransportError struct {
	Message    string
	StatusCode int // 0 when no HTTP response was received
	Raw        string
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return "transport: " + e.Message
}

// APIError reports a reachable server that returned a well-formed JSON error
// payload ({"error": ...} or {"message": ...}).
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %s (HTTP %d)", e.Message, e.StatusCode)
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsAPIError reports whether err is (or wraps) an APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
