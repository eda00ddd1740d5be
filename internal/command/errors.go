// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package command

import (
	"errors"
	"fmt"
)

// ErrInProgress is returned when a command targets an entity that already
// has an operation in flight. The caller should disable resubmission, not
// queue.
var ErrInProgress = errors.New("command: operation already in progress for entity")

// ValidationError reports a locally rejected command. It is produced before
// any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a local validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConnectionStateError reports a push-channel command attempted while the
// channel was not connected. The command was never sent.
type ConnectionStateError struct {
	Action string
}

func (e *ConnectionStateError) Error() string {
	return fmt.Sprintf("command %q not sent: push channel not connected", e.Action)
}

// FallbackError combines the primary and legacy endpoint failures of a
// fallback command into one error. Unwrap yields the legacy failure, which
// is the one that sealed the outcome.
type FallbackError struct {
	Primary  string
	Fallback string
	PrimErr  error
	FallErr  error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s failed (%v); legacy %s failed (%v)",
		e.Primary, e.PrimErr, e.Fallback, e.FallErr)
}

func (e *FallbackError) Unwrap() error { return e.FallErr }
