// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package statestore persists the last reconciled cache snapshot so the
// dashboard can show last-known-good state at startup, before the first
// poll completes. The stored snapshot keeps its lastUpdate markers, so a
// warm-started status still loses to any fresher poll or push result.
package statestore

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
)

const snapshotKey = "wallwatch/snapshot/v1"

// snapshot is the persisted form of the cache.
type snapshot struct {
	Clients  []models.Client                `json:"clients"`
	Groups   []models.Group                 `json:"groups"`
	Statuses map[string]models.StreamStatus `json:"statuses"`
	Videos   []string                       `json:"videos"`
	SavedAt  int64                          `json:"saved_at"`
}

// Store persists cache snapshots to a local badger database.
type Store struct {
	db      *badger.DB
	session *state.Session

	// debounce collapses change bursts into one write.
	debounce time.Duration
}

// Open opens (or creates) the store at dir.
func Open(dir string, session *state.Session) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", dir, err)
	}
	return &Store{
		db:       db,
		session:  session,
		debounce: 2 * time.Second,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Restore loads the persisted snapshot into the session cache. A missing
// snapshot is not an error; the cache simply starts cold.
func (s *Store) Restore() error {
	var snap snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err == badger.ErrKeyNotFound {
		logging.Debug().Msg("no persisted snapshot, starting cold")
		return nil
	}
	if err != nil {
		return fmt.Errorf("statestore: restore: %w", err)
	}

	cache := s.session.Cache
	cache.ReplaceClients(snap.Clients)
	cache.ReplaceGroups(snap.Groups)
	cache.SetVideos(snap.Videos)
	for groupID, st := range snap.Statuses {
		cache.ApplyStatusPatch(groupID, models.StreamStatusPatch{
			Streaming:        &st.Streaming,
			ActiveClients:    &st.ActiveClients,
			AvailableStreams: st.AvailableStreams,
			CurrentVideo:     &st.CurrentVideo,
			LastUpdate:       st.LastUpdate,
		})
	}

	logging.Info().
		Int("clients", len(snap.Clients)).
		Int("groups", len(snap.Groups)).
		Time("saved_at", time.UnixMilli(snap.SavedAt)).
		Msg("restored state snapshot")
	return nil
}

// Save writes the current cache state as one snapshot.
func (s *Store) Save() error {
	cache := s.session.Cache
	snap := snapshot{
		Clients:  cache.Clients(),
		Groups:   cache.Groups(),
		Statuses: cache.Statuses(),
		Videos:   cache.Videos(),
		SavedAt:  time.Now().UnixMilli(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("statestore: marshal: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), data)
	})
	if err != nil {
		return fmt.Errorf("statestore: save: %w", err)
	}
	return nil
}

// Serve subscribes to cache changes and persists snapshots, debounced so a
// change burst costs one write. A final snapshot is written on shutdown.
func (s *Store) Serve(ctx context.Context) error {
	changes, cancel := s.session.Cache.Subscribe()
	defer cancel()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if err := s.Save(); err != nil {
				logging.Error().Err(err).Msg("final snapshot write failed")
			}
			return ctx.Err()

		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				fire = timer.C
			}

		case <-fire:
			timer = nil
			fire = nil
			if err := s.Save(); err != nil {
				logging.Error().Err(err).Msg("snapshot write failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Store) String() string { return "statestore" }
