// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package poller

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/metrics"
)

// ErrBreakerOpen is returned when the circuit is open and the fetch was not
// attempted. The scheduler treats it like any other poll failure: logged,
// swallowed, cache retained.
var ErrBreakerOpen = errors.New("poller: circuit breaker open")

// Breaker wraps poll fetches with a circuit breaker so a down wall server is
// probed at the breaker's pace instead of hammered on every tick.
//
// Opens after a 60% failure rate over at least 10 requests; waits 2 minutes
// before probing half-open. The breaker uses real time; tests exercise the
// wrapped fetches directly.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreaker creates a named circuit breaker with production settings.
func NewBreaker(name string) *Breaker {
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.BreakerTransitions.WithLabelValues(name, breakerStateString(from), breakerStateString(to)).Inc()
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBreakerOpen
	}
	return err
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
