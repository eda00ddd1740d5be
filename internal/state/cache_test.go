// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package state

import (
	"testing"
	"time"

	"github.com/wallwatch/wallwatch/internal/models"
)

func boolPtr(b bool) *bool    { return &b }
func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestApplyStatusPatchMarkerOrdering(t *testing.T) {
	// The final value must equal the update with the greatest marker,
	// regardless of arrival order.
	orders := [][]struct {
		marker    int64
		streaming bool
	}{
		{{1, false}, {2, true}, {3, false}},
		{{3, false}, {1, false}, {2, true}},
		{{2, true}, {3, false}, {1, false}},
	}

	for i, updates := range orders {
		cache := NewCache()
		for _, u := range updates {
			cache.ApplyStatusPatch("g1", models.StreamStatusPatch{
				Streaming:  boolPtr(u.streaming),
				LastUpdate: u.marker,
			})
		}

		status, ok := cache.StreamStatus("g1")
		if !ok {
			t.Fatalf("order %d: status missing", i)
		}
		if status.LastUpdate != 3 {
			t.Errorf("order %d: marker = %d, want 3", i, status.LastUpdate)
		}
		if status.Streaming {
			t.Errorf("order %d: streaming = true, want value of marker 3", i)
		}
	}
}

func TestApplyStatusPatchRejectsStale(t *testing.T) {
	cache := NewCache()

	if !cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(true), LastUpdate: 200}) {
		t.Fatal("fresh patch must apply")
	}
	if cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(false), LastUpdate: 100}) {
		t.Fatal("stale patch must be rejected")
	}

	status, _ := cache.StreamStatus("g1")
	if !status.Streaming || status.LastUpdate != 200 {
		t.Errorf("stale patch leaked: %+v", status)
	}
}

func TestApplyStatusPatchEqualMarkerApplies(t *testing.T) {
	cache := NewCache()
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(false), LastUpdate: 100})
	if !cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(true), LastUpdate: 100}) {
		t.Fatal("equal marker must not be treated as stale")
	}
}

func TestApplyStatusPatchPartialMerge(t *testing.T) {
	cache := NewCache()
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{
		Streaming:     boolPtr(true),
		ActiveClients: intPtr(5),
		CurrentVideo:  strPtr("a.mp4"),
		LastUpdate:    1,
	})
	// Patch only the client count; other fields stay.
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{
		ActiveClients: intPtr(6),
		LastUpdate:    2,
	})

	status, _ := cache.StreamStatus("g1")
	if !status.Streaming {
		t.Error("unrelated streaming field disturbed")
	}
	if status.ActiveClients != 6 {
		t.Errorf("active clients = %d, want 6", status.ActiveClients)
	}
	if status.CurrentVideo != "a.mp4" {
		t.Error("unrelated video field disturbed")
	}
}

func TestReplaceClientsNoStaleSurvivors(t *testing.T) {
	cache := NewCache()
	cache.ReplaceClients([]models.Client{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}})
	cache.ReplaceClients([]models.Client{{ID: "c2"}})

	if _, ok := cache.Client("c1"); ok {
		t.Error("c1 survived full replacement")
	}
	if _, ok := cache.Client("c3"); ok {
		t.Error("c3 survived full replacement")
	}
	if clients := cache.Clients(); len(clients) != 1 || clients[0].ID != "c2" {
		t.Errorf("unexpected client set: %+v", clients)
	}
}

func TestReplaceGroupsDropsOrphanStatuses(t *testing.T) {
	cache := NewCache()
	cache.ReplaceGroups([]models.Group{{ID: "g1"}, {ID: "g2"}})
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(true), LastUpdate: 1})
	cache.ApplyStatusPatch("g2", models.StreamStatusPatch{Streaming: boolPtr(true), LastUpdate: 1})

	cache.ReplaceGroups([]models.Group{{ID: "g2"}})

	if _, ok := cache.StreamStatus("g1"); ok {
		t.Error("status for vanished group g1 retained")
	}
	if _, ok := cache.StreamStatus("g2"); !ok {
		t.Error("status for surviving group g2 dropped")
	}
}

func TestOptimisticGroupRemoval(t *testing.T) {
	cache := NewCache()
	cache.ReplaceClients([]models.Client{{ID: "c1", GroupID: "g1"}})
	cache.ReplaceGroups([]models.Group{{ID: "g1", Name: "Lobby"}})
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(true), LastUpdate: 1})

	cache.RemoveGroup("g1")

	if _, ok := cache.Group("g1"); ok {
		t.Error("g1 still listed after optimistic removal")
	}
	if _, ok := cache.StreamStatus("g1"); ok {
		t.Error("g1 status retained after removal")
	}
	// The client keeps its assignment field; the reference simply no
	// longer resolves to an existing group.
	c1, ok := cache.Client("c1")
	if !ok {
		t.Fatal("c1 missing")
	}
	if _, resolvable := cache.Group(c1.GroupID); resolvable {
		t.Error("c1's group reference still resolves")
	}
}

func TestSetStreamingOptimisticWinsOverOlderPoll(t *testing.T) {
	cache := NewCache()
	cache.now = func() time.Time { return time.UnixMilli(1000) }

	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(false), LastUpdate: 500})
	cache.SetStreamingOptimistic("g1", true)

	// A poll result produced before the flip must lose.
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{Streaming: boolPtr(false), LastUpdate: 900})

	status, _ := cache.StreamStatus("g1")
	if !status.Streaming {
		t.Error("older poll overwrote optimistic flip")
	}
}

func TestStatusPatchSyncsGroupFlag(t *testing.T) {
	cache := NewCache()
	cache.ReplaceGroups([]models.Group{{ID: "g1"}})
	cache.ApplyStatusPatch("g1", models.StreamStatusPatch{
		Streaming:    boolPtr(true),
		CurrentVideo: strPtr("loop.mp4"),
		LastUpdate:   1,
	})

	g, _ := cache.Group("g1")
	if !g.Streaming || g.CurrentVideo != "loop.mp4" {
		t.Errorf("group flag out of step with status: %+v", g)
	}
}

func TestUpdateClientUnknownIsNoop(t *testing.T) {
	cache := NewCache()
	cache.UpdateClient("ghost", func(c *models.Client) { c.GroupID = "g1" })
	if len(cache.Clients()) != 0 {
		t.Error("mutating an unknown client created it")
	}
}

func TestVideosAddRemove(t *testing.T) {
	cache := NewCache()
	cache.SetVideos([]string{"a.mp4", "b.mp4"})
	cache.AddVideo("c.mp4")
	cache.AddVideo("a.mp4") // duplicate ignored
	cache.RemoveVideo("b.mp4")

	videos := cache.Videos()
	if len(videos) != 2 || videos[0] != "a.mp4" || videos[1] != "c.mp4" {
		t.Errorf("unexpected video list: %v", videos)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	cache := NewCache()
	ch, cancel := cache.Subscribe()
	defer cancel()

	cache.ReplaceClients([]models.Client{{ID: "c1"}})

	select {
	case change := <-ch:
		if change.Kind != ChangeClients {
			t.Errorf("change kind = %s, want clients", change.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no change notification received")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	cache := NewCache()
	ch, cancel := cache.Subscribe()
	cancel()

	// Writes after cancel must not panic on the closed channel.
	cache.ReplaceClients([]models.Client{{ID: "c1"}})

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}
}
