package relay

import (
	"log/slog"
	"sync"
)

// Registry is the process-wide map from room id to Room, shared by every
// connection session. It is always passed by handle, never kept as a
// package global. Rooms are never removed, even when their last player
// leaves; restart is the only cleanup.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, constructing and inserting it first
// if absent. init runs under the exclusive lock on the freshly created room
// only, so creation plus initial mutation is atomic.
func (g *Registry) GetOrCreate(id string, init func(*Room)) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		return r, false
	}
	r := newRoom(id)
	if init != nil {
		init(r)
	}
	g.rooms[id] = r
	slog.Info("room created", "roomID", id)
	return r, true
}

// WithRoomMut applies f to the room under the exclusive lock. Returns false
// without calling f when the room does not exist: commands against unknown
// room ids are silently dropped, not surfaced as errors.
func (g *Registry) WithRoomMut(id string, f func(*Room)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok {
		return false
	}
	f(r)
	return true
}

// WithRoom applies f to the room under the shared lock. Broadcast-only
// operations go through here so they can proceed concurrently.
func (g *Registry) WithRoom(id string, f func(*Room)) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[id]
	if !ok {
		return false
	}
	f(r)
	return true
}

// Len reports the number of rooms ever created and still resident.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
