// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Command wallwatch runs the console-side synchronization daemon: it keeps
// a reconciled view of display clients, streaming groups and stream
// statuses in step with the wall server over polling and a push-event
// channel, and serves that view plus the command surface to the dashboard
// over a local API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/wallwatch/wallwatch/internal/api"
	"github.com/wallwatch/wallwatch/internal/command"
	"github.com/wallwatch/wallwatch/internal/config"
	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/poller"
	"github.com/wallwatch/wallwatch/internal/push"
	"github.com/wallwatch/wallwatch/internal/state"
	"github.com/wallwatch/wallwatch/internal/statestore"
	"github.com/wallwatch/wallwatch/internal/supervisor"
	"github.com/wallwatch/wallwatch/internal/transport"
	"github.com/wallwatch/wallwatch/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("server_url", cfg.Server.URL).
		Bool("push_enabled", cfg.Push.Enabled).
		Msg("Starting wallwatch")

	// One session per daemon run: the cache plus the transport it is fed
	// from. Everything downstream receives it explicitly.
	session := state.NewSession(
		state.NewCache(),
		transport.New(cfg.Server.URL, cfg.Server.Timeout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Warm start: restore the last persisted snapshot before the first
	// poll so the dashboard is never blank on startup.
	if cfg.Store.Enabled {
		store, err := statestore.Open(cfg.Store.Path, session)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open state store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing state store")
			}
		}()
		if err := store.Restore(); err != nil {
			logging.Warn().Err(err).Msg("Snapshot restore failed, starting cold")
		}
		tree.AddSyncService(store)
	}

	scheduler := poller.NewScheduler(session, poller.Config{
		ClientInterval: cfg.Poll.ClientInterval,
		StatusInterval: cfg.Poll.StatusInterval,
		MinSpacing:     cfg.Poll.MinSpacing,
	})
	tree.AddSyncService(scheduler)

	var pushClient *push.Client
	if cfg.Push.Enabled {
		pushClient, err = push.NewClient(cfg.Server.URL, session, push.Config{
			ReconnectDelay: cfg.Push.ReconnectDelay,
			MaxRetries:     cfg.Push.MaxRetries,
			PingInterval:   cfg.Push.PingInterval,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create push client")
		}
		pushClient.OnStateChange = func(s push.ConnState) {
			logging.Info().Str("state", string(s)).Msg("push channel state changed")
		}
		pushClient.OnCommandResult = func(requestID, action string, err error) {
			if err != nil {
				logging.Error().Err(err).
					Str("action", action).
					Str("request_id", requestID).
					Msg("stream command rejected")
				return
			}
			logging.Debug().
				Str("action", action).
				Str("request_id", requestID).
				Msg("stream command acknowledged")
		}
		tree.AddSyncService(pushClient)
	}

	pipeline := upload.NewPipeline(session, upload.Config{
		FileTimeout:   cfg.Upload.FileTimeout,
		TerminalGrace: cfg.Upload.TerminalGrace,
	})
	defer pipeline.Close()

	// A nil *push.Client must not become a non-nil Pusher interface.
	var pusher command.Pusher
	if pushClient != nil {
		pusher = pushClient
	}

	handler := api.NewHandler(session)
	handler.Commands = command.NewOrchestrator(session, pusher)
	handler.Pipeline = pipeline
	handler.UploadTasks = func() []models.UploadTask { return pipeline.Tasks() }
	if pushClient != nil {
		handler.PushState = func() string { return string(pushClient.State()) }
	}
	tree.AddAPIService(api.NewServer(cfg.API, handler))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Daemon stopped gracefully")
}
