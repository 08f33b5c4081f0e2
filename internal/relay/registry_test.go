package relay

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrCreate_InitRunsOnceOnFreshRoom(t *testing.T) {
	reg := NewRegistry()

	room, created := reg.GetOrCreate("room1", func(r *Room) {
		r.HostID = "u1"
	})
	if !created || room.HostID != "u1" {
		t.Fatalf("expected fresh room with host u1, got created=%v host=%q", created, room.HostID)
	}

	again, created := reg.GetOrCreate("room1", func(r *Room) {
		r.HostID = "u2"
	})
	if created {
		t.Fatalf("second GetOrCreate must return the existing room")
	}
	if again != room || again.HostID != "u1" {
		t.Fatalf("existing room must be untouched, got host=%q", again.HostID)
	}
}

func TestGetOrCreate_ConcurrentSingleWinner(t *testing.T) {
	reg := NewRegistry()

	var creations int32
	var wg sync.WaitGroup
	rooms := make([]*Room, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _ := reg.GetOrCreate("room1", func(r *Room) {
				atomic.AddInt32(&creations, 1)
			})
			rooms[i] = r
		}(i)
	}
	wg.Wait()

	if creations != 1 {
		t.Fatalf("expected exactly one creation, got %d", creations)
	}
	for i := 1; i < 16; i++ {
		if rooms[i] != rooms[0] {
			t.Fatalf("all goroutines must see the same room")
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 room, got %d", reg.Len())
	}
}

func TestWithRoomMut_MissingRoomIsNoOp(t *testing.T) {
	reg := NewRegistry()

	called := false
	if reg.WithRoomMut("nope", func(r *Room) { called = true }) {
		t.Fatalf("missing room must report false")
	}
	if reg.WithRoom("nope", func(r *Room) { called = true }) {
		t.Fatalf("missing room must report false")
	}
	if called {
		t.Fatalf("closure must not run for a missing room")
	}
}
