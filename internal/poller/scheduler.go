// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package poller periodically refreshes the reconciliation cache from the
// wall server's REST surface.
//
// Two independent cadences run side by side: a fast cadence for client
// liveness (operators watch this list) and a slow cadence for group and
// stream status discovery, which is expensive server-side and low-churn.
// The cadences carry no ordering guarantee relative to each other.
//
// A failed poll never clears cache state; stale-but-present data beats a
// blank dashboard. Failures are logged and the next scheduled tick proceeds
// normally.
package poller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/metrics"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
	"github.com/wallwatch/wallwatch/internal/transport"
)

// Config configures the polling scheduler.
type Config struct {
	// ClientInterval is the fast cadence for client liveness.
	ClientInterval time.Duration

	// StatusInterval is the slow cadence for groups, statuses and videos.
	StatusInterval time.Duration

	// MinSpacing is the minimum interval between two fetches of the same
	// collection, measured from the last successful completion. It caps
	// request rate under manual dashboard refreshes.
	MinSpacing time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ClientInterval: 3 * time.Second,
		StatusInterval: 30 * time.Second,
		MinSpacing:     time.Second,
	}
}

// Scheduler drives periodic refreshes of the reconciliation cache. Create
// one per session; it holds the shared fetch-throttling state that guards
// against overlapping or too-frequent requests.
type Scheduler struct {
	session *state.Session
	cfg     Config
	breaker *Breaker

	clientGate *gate
	statusGate *gate

	// limiter is a scheduler-wide backstop on request bursts from manual
	// refreshes; scheduled ticks are already paced by their intervals.
	limiter *rate.Limiter

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler bound to a session.
func NewScheduler(session *state.Session, cfg Config) *Scheduler {
	if cfg.ClientInterval <= 0 {
		cfg.ClientInterval = DefaultConfig().ClientInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = DefaultConfig().MinSpacing
	}

	return &Scheduler{
		session:    session,
		cfg:        cfg,
		breaker:    NewBreaker("wall-server"),
		clientGate: newGate(cfg.MinSpacing),
		statusGate: newGate(cfg.MinSpacing),
		limiter:    rate.NewLimiter(rate.Every(cfg.MinSpacing), 4),
		stopChan:   make(chan struct{}),
	}
}

// Start begins both polling loops. Idempotent.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	logging.Info().
		Dur("client_interval", s.cfg.ClientInterval).
		Dur("status_interval", s.cfg.StatusInterval).
		Msg("starting polling scheduler")

	s.wg.Add(2)
	go s.loop(ctx, s.cfg.ClientInterval, s.RefreshClients)
	go s.loop(ctx, s.cfg.StatusInterval, s.RefreshStatus)

	return nil
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *Scheduler) String() string { return "polling-scheduler" }

// Stop halts both loops and waits for them to finish. No cache mutation
// happens after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("polling scheduler stopped")
}

// IsRunning reports whether the loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop fires refresh at the given interval, with an immediate first tick.
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, refresh func(context.Context)) {
	defer s.wg.Done()

	refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			refresh(ctx)
		}
	}
}

// RefreshClients fetches the authoritative client list and replaces the
// cache's client collection. Safe to call from the dashboard's manual
// refresh; coalescing and spacing rules apply.
func (s *Scheduler) RefreshClients(ctx context.Context) {
	if !s.acquire(s.clientGate, "clients") {
		return
	}

	start := time.Now()
	err := s.breaker.Execute(func() error {
		var list models.ClientList
		if err := s.session.Transport.Get(ctx, "/api/clients/list", &list); err != nil {
			// Older server builds only carry the legacy endpoint.
			if !transport.IsTransportError(err) {
				return err
			}
			if lerr := s.session.Transport.Get(ctx, "/get_clients", &list); lerr != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			// View torn down mid-flight; do not mutate.
			return ctx.Err()
		}
		s.session.Cache.ReplaceClients(list.Clients)
		return nil
	})
	s.clientGate.release(err == nil)

	if err != nil {
		metrics.PollErrors.WithLabelValues("clients").Inc()
		logging.Warn().Err(err).Msg("client poll failed, cache retained")
		return
	}
	metrics.PollDuration.WithLabelValues("clients").Observe(time.Since(start).Seconds())
}

// statusEnvelope is the wire shape of /all_streaming_statuses: raw status
// values per group, each either a boolean or a status object.
type statusEnvelope struct {
	Statuses map[string]json.RawMessage `json:"statuses"`
}

// RefreshStatus fetches groups, per-group stream statuses and the video
// list, merging each into the cache.
func (s *Scheduler) RefreshStatus(ctx context.Context) {
	if !s.acquire(s.statusGate, "statuses") {
		return
	}

	start := time.Now()
	err := s.breaker.Execute(func() error {
		var groups models.GroupList
		if err := s.session.Transport.Get(ctx, "/get_groups", &groups); err != nil {
			return err
		}

		var envelope statusEnvelope
		if err := s.session.Transport.Get(ctx, "/all_streaming_statuses", &envelope); err != nil {
			return err
		}

		var videos models.VideoList
		if err := s.session.Transport.Get(ctx, "/get_videos", &videos); err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.session.Cache.ReplaceGroups(groups.Groups)
		marker := time.Now().UnixMilli()
		for groupID, raw := range envelope.Statuses {
			patch := models.DecodeStatusPatch(raw, marker)
			s.session.Cache.ApplyStatusPatch(groupID, patch)
		}
		s.session.Cache.SetVideos(videos.Videos)
		return nil
	})
	s.statusGate.release(err == nil)

	if err != nil {
		metrics.PollErrors.WithLabelValues("statuses").Inc()
		logging.Warn().Err(err).Msg("status poll failed, cache retained")
		return
	}
	metrics.PollDuration.WithLabelValues("statuses").Observe(time.Since(start).Seconds())
}

// RefreshGroupStatus fetches one group's status on demand, outside the
// gates; used after commands to reconcile promptly.
func (s *Scheduler) RefreshGroupStatus(ctx context.Context, groupID string) {
	raw, err := s.session.Transport.Do(ctx, http.MethodGet, "/streaming_status/"+groupID, nil)
	if err != nil {
		logging.Debug().Err(err).Str("group_id", groupID).Msg("group status refresh failed")
		return
	}
	patch := models.DecodeStatusPatch(raw, time.Now().UnixMilli())
	s.session.Cache.ApplyStatusPatch(groupID, patch)
}

// acquire applies the coalescing rules for one collection: skip when a poll
// is already in flight, when the minimum spacing since the last successful
// completion has not elapsed, or when the scheduler-wide limiter rejects
// the burst.
func (s *Scheduler) acquire(g *gate, collection string) bool {
	ok, reason := g.tryAcquire()
	if !ok {
		metrics.PollSkipped.WithLabelValues(collection, reason).Inc()
		return false
	}
	if !s.limiter.Allow() {
		g.release(false)
		metrics.PollSkipped.WithLabelValues(collection, "spacing").Inc()
		return false
	}
	return true
}

// gate serializes fetches of one collection and enforces minimum spacing
// from the last successful completion.
type gate struct {
	mu          sync.Mutex
	inFlight    bool
	lastSuccess time.Time
	spacing     time.Duration
}

func newGate(spacing time.Duration) *gate {
	return &gate{spacing: spacing}
}

func (g *gate) tryAcquire() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return false, "in_flight"
	}
	if !g.lastSuccess.IsZero() && time.Since(g.lastSuccess) < g.spacing {
		return false, "spacing"
	}
	g.inFlight = true
	return true, ""
}

func (g *gate) release(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
	if success {
		g.lastSuccess = time.Now()
	}
}
