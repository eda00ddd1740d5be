// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package api serves the local HTTP API the dashboard frontend consumes:
// snapshot reads over the reconciled cache, write endpoints delegating to
// the command orchestrator and upload pipeline, push channel health and
// Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wallwatch/wallwatch/internal/config"
	"github.com/wallwatch/wallwatch/internal/logging"
)

// Server is the local HTTP API server.
type Server struct {
	cfg     config.APIConfig
	handler *Handler
	srv     *http.Server
}

// NewServer builds the API server around a handler.
func NewServer(cfg config.APIConfig, handler *Handler) *Server {
	s := &Server{cfg: cfg, handler: handler}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))

		r.Get("/health", s.handler.Health)
		r.Get("/clients", s.handler.Clients)
		r.Get("/groups", s.handler.Groups)
		r.Get("/groups/{id}/status", s.handler.GroupStatus)
		r.Get("/videos", s.handler.Videos)
		r.Get("/uploads", s.handler.Uploads)

		r.Post("/groups", s.handler.CreateGroup)
		r.Delete("/groups/{id}", s.handler.DeleteGroup)
		r.Post("/groups/{id}/start", s.handler.StartGroup)
		r.Post("/groups/{id}/stop", s.handler.StopGroup)
		r.Post("/groups/{id}/quick", s.handler.QuickControl)

		r.Post("/clients/{id}/assign", s.handler.AssignClient)
		r.Post("/clients/{id}/unassign", s.handler.UnassignClient)
		r.Post("/clients/{id}/heartbeat", s.handler.ClientHeartbeat)
		r.Get("/clients/{id}/assignment", s.handler.ClientAssignment)
		r.Delete("/clients/{id}", s.handler.RemoveClient)
		r.Post("/clients/bulk_remove", s.handler.BulkRemoveClients)
		r.Post("/clients/cleanup", s.handler.CleanupClients)
		r.Post("/clients/auto_cleanup", s.handler.AutoCleanup)

		r.Post("/uploads", s.handler.UploadVideos)
		r.Delete("/videos/{name}", s.handler.DeleteVideo)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve runs the HTTP server until the context is canceled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("local API listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string { return "api-server" }
