// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package state holds the reconciliation cache: the single source of truth
// the dashboard reads, fed by the polling scheduler, the push-event client
// and the command orchestrator.
//
// Writer discipline: polling owns full-collection replacement, push events
// own partial status patches, and the orchestrator owns optimistic
// single-entity mutations. Competing status writes for the same group are
// ordered by each record's LastUpdate marker, never by arrival order.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/metrics"
	"github.com/wallwatch/wallwatch/internal/models"
)

// ChangeKind identifies which collection a change notification refers to.
type ChangeKind string

const (
	ChangeClients ChangeKind = "clients"
	ChangeGroups  ChangeKind = "groups"
	ChangeStatus  ChangeKind = "status"
	ChangeVideos  ChangeKind = "videos"
)

// Change is one cache change notification.
type Change struct {
	Kind ChangeKind
	// GroupID is set for status changes.
	GroupID string
}

// subscriberBuffer bounds each subscriber channel. Slow subscribers drop
// notifications rather than blocking writers; the cache snapshot is always
// readable regardless.
const subscriberBuffer = 64

// Cache is the process-wide reconciled view of clients, groups, stream
// statuses and the server-side video list. All methods are safe for
// concurrent use.
type Cache struct {
	mu       sync.RWMutex
	clients  map[string]models.Client
	groups   map[string]models.Group
	statuses map[string]models.StreamStatus
	videos   []string

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int

	// now is swappable for tests.
	now func() time.Time
}

// NewCache creates an empty reconciliation cache.
func NewCache() *Cache {
	return &Cache{
		clients:  make(map[string]models.Client),
		groups:   make(map[string]models.Group),
		statuses: make(map[string]models.StreamStatus),
		subs:     make(map[int]chan Change),
		now:      time.Now,
	}
}

// Clients returns a snapshot of all known clients, ordered by ID.
func (c *Cache) Clients() []models.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Client, 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Client returns one client by ID.
func (c *Cache) Client(id string) (models.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[id]
	return cl, ok
}

// Groups returns a snapshot of all known groups, ordered by name.
func (c *Cache) Groups() []models.Group {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Group returns one group by ID.
func (c *Cache) Group(id string) (models.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[id]
	return g, ok
}

// StreamStatus returns the most recently merged status for a group.
func (c *Cache) StreamStatus(groupID string) (models.StreamStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.statuses[groupID]
	return st, ok
}

// Statuses returns a snapshot of all stream statuses keyed by group ID.
func (c *Cache) Statuses() map[string]models.StreamStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.StreamStatus, len(c.statuses))
	for id, st := range c.statuses {
		out[id] = st
	}
	return out
}

// Videos returns the server-side video list.
func (c *Cache) Videos() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.videos))
	copy(out, c.videos)
	return out
}

// ReplaceClients replaces the entire client collection with an authoritative
// list. Total-replace semantics are intentional: clients absent from the new
// list disappear, so a missed delete event cannot leave a stale survivor.
func (c *Cache) ReplaceClients(list []models.Client) {
	c.mu.Lock()
	next := make(map[string]models.Client, len(list))
	for _, cl := range list {
		next[cl.ID] = cl
	}
	c.clients = next
	c.mu.Unlock()

	metrics.CacheReplacements.WithLabelValues("clients").Inc()
	c.notify(Change{Kind: ChangeClients})
}

// ReplaceGroups replaces the entire group collection with an authoritative
// list. Statuses for groups no longer present are dropped with them.
func (c *Cache) ReplaceGroups(list []models.Group) {
	c.mu.Lock()
	next := make(map[string]models.Group, len(list))
	for _, g := range list {
		next[g.ID] = g
	}
	for id := range c.statuses {
		if _, ok := next[id]; !ok {
			delete(c.statuses, id)
		}
	}
	c.groups = next
	c.mu.Unlock()

	metrics.CacheReplacements.WithLabelValues("groups").Inc()
	c.notify(Change{Kind: ChangeGroups})
}

// SetVideos replaces the video list.
func (c *Cache) SetVideos(videos []string) {
	c.mu.Lock()
	c.videos = append([]string(nil), videos...)
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeVideos})
}

// AddVideo appends one video to the list if not already present. Used by the
// upload pipeline on confirmed success.
func (c *Cache) AddVideo(name string) {
	c.mu.Lock()
	for _, v := range c.videos {
		if v == name {
			c.mu.Unlock()
			return
		}
	}
	c.videos = append(c.videos, name)
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeVideos})
}

// UpsertGroup inserts or replaces a single group. Used by the orchestrator
// after a create command returns the server's view of the new group.
func (c *Cache) UpsertGroup(g models.Group) {
	c.mu.Lock()
	c.groups[g.ID] = g
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeGroups})
}

// RemoveVideo drops one video from the list. No-op when absent.
func (c *Cache) RemoveVideo(name string) {
	c.mu.Lock()
	kept := c.videos[:0]
	for _, v := range c.videos {
		if v != name {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(c.videos) {
		c.mu.Unlock()
		return
	}
	c.videos = kept
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeVideos})
}

// ApplyStatusPatch merges a partial status update for one group. The patch
// is rejected when its LastUpdate marker is older than the stored record's,
// so an out-of-order late poll result never overwrites a newer push update.
// Returns whether the patch was applied.
func (c *Cache) ApplyStatusPatch(groupID string, patch models.StreamStatusPatch) bool {
	c.mu.Lock()

	current, exists := c.statuses[groupID]
	if exists && patch.LastUpdate < current.LastUpdate {
		c.mu.Unlock()
		metrics.CachePatches.WithLabelValues("rejected_stale").Inc()
		logging.Debug().
			Str("group_id", groupID).
			Int64("patch_marker", patch.LastUpdate).
			Int64("stored_marker", current.LastUpdate).
			Msg("stale status patch rejected")
		return false
	}

	if !exists {
		current = models.StreamStatus{GroupID: groupID}
	}
	if patch.Streaming != nil {
		current.Streaming = *patch.Streaming
	}
	if patch.ActiveClients != nil {
		current.ActiveClients = *patch.ActiveClients
	}
	if patch.AvailableStreams != nil {
		current.AvailableStreams = patch.AvailableStreams
	}
	if patch.CurrentVideo != nil {
		current.CurrentVideo = *patch.CurrentVideo
	}
	current.LastUpdate = patch.LastUpdate
	c.statuses[groupID] = current

	// Keep the group's derived running flag in step with its status.
	if g, ok := c.groups[groupID]; ok && patch.Streaming != nil {
		g.Streaming = *patch.Streaming
		if patch.CurrentVideo != nil {
			g.CurrentVideo = *patch.CurrentVideo
		}
		c.groups[groupID] = g
	}
	c.mu.Unlock()

	metrics.CachePatches.WithLabelValues("accepted").Inc()
	c.notify(Change{Kind: ChangeStatus, GroupID: groupID})
	return true
}

// RemoveGroup removes a group and its status immediately. Used for
// optimistic deletion: the entity disappears locally before the server
// confirms. Clients referencing the group keep their assignment field; the
// reference simply no longer resolves.
func (c *Cache) RemoveGroup(groupID string) {
	c.mu.Lock()
	delete(c.groups, groupID)
	delete(c.statuses, groupID)
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeGroups})
}

// RemoveClient removes one client immediately. Used for optimistic removal
// after a remove command is accepted by the transport layer.
func (c *Cache) RemoveClient(clientID string) {
	c.mu.Lock()
	delete(c.clients, clientID)
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeClients})
}

// SetStreamingOptimistic flips a group's streaming flag locally for snappy
// feedback after a start/stop command succeeds. The flip carries a fresh
// marker and is superseded by the next authoritative read.
func (c *Cache) SetStreamingOptimistic(groupID string, streaming bool) {
	marker := c.now().UnixMilli()
	c.ApplyStatusPatch(groupID, models.StreamStatusPatch{
		Streaming:  &streaming,
		LastUpdate: marker,
	})
}

// UpdateClient applies an optimistic single-client mutation, such as an
// assignment, without waiting for the next poll. No-op for unknown clients.
func (c *Cache) UpdateClient(clientID string, mutate func(*models.Client)) {
	c.mu.Lock()
	cl, ok := c.clients[clientID]
	if !ok {
		c.mu.Unlock()
		return
	}
	mutate(&cl)
	c.clients[clientID] = cl
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeClients})
}

// Subscribe registers a change listener. The returned cancel function must
// be called when the listener goes away. Notifications are dropped, not
// queued indefinitely, when the subscriber falls behind.
func (c *Cache) Subscribe() (<-chan Change, func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	ch := make(chan Change, subscriberBuffer)
	c.subs[id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.subMu.Unlock()
	}
	return ch, cancel
}

// notify fans a change out to all subscribers without blocking.
func (c *Cache) notify(change Change) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
