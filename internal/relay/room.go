package relay

import (
	"log/slog"
	"sync"

	"github.com/Ryan-DPC/vext-relay/internal/protocol"
)

// DefaultSpeed is assigned to every player on create/join; clients adjust it
// later through gameplay traffic, the relay never recomputes it.
const DefaultSpeed = 1.0

// subscriberBuffer bounds how many undelivered frames a single subscriber
// may queue. A subscriber that lags further behind loses messages instead of
// growing the queue forever.
const subscriberBuffer = 64

// Phase is the room lifecycle state carried in GameState snapshots.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhasePlaying Phase = "playing"
)

// Player is the relay-side state for one room member.
type Player struct {
	Username string
	Class    string
	HP       float64
	MaxHP    float64
	Speed    float64
	X        float64
	Y        float64
}

// Room is one game session: a roster keyed by user id, the host identity,
// the lifecycle phase and the broadcast fan-out. All structural mutation
// happens under the registry's exclusive lock, so Room carries no lock of
// its own; the broadcaster is independently safe.
type Room struct {
	ID      string
	Players map[string]*Player
	HostID  string
	Phase   Phase

	bc *broadcaster
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		Players: make(map[string]*Player),
		Phase:   PhaseWaiting,
		bc:      newBroadcaster(),
	}
}

// AddPlayer inserts or replaces the roster entry for userID.
func (r *Room) AddPlayer(userID string, p *Player) {
	r.Players[userID] = p
	slog.Info("player added to room", "userID", userID, "roomID", r.ID)
}

// RemovePlayer deletes the roster entry, reporting whether it existed.
// Safe to call twice for the same player.
func (r *Room) RemovePlayer(userID string) bool {
	if _, ok := r.Players[userID]; !ok {
		return false
	}
	delete(r.Players, userID)
	slog.Info("player removed from room", "userID", userID, "roomID", r.ID)
	return true
}

// ApplyDamage subtracts client-reported damage from the target's HP, clamped
// at zero, and returns the new HP. Returns nil when targetID is not a player
// in this room (enemy ids pass through the relay untouched).
func (r *Room) ApplyDamage(targetID string, damage float64) *float64 {
	p, ok := r.Players[targetID]
	if !ok {
		return nil
	}
	p.HP -= damage
	if p.HP < 0 {
		p.HP = 0
	}
	hp := p.HP
	return &hp
}

// Roster returns the current players as wire data, excluding excludeID.
func (r *Room) Roster(excludeID string) []protocol.PlayerData {
	players := make([]protocol.PlayerData, 0, len(r.Players))
	for id, p := range r.Players {
		if id == excludeID {
			continue
		}
		players = append(players, protocol.PlayerData{
			ID:       id,
			Username: p.Username,
			Class:    p.Class,
			HP:       p.HP,
			MaxHP:    p.MaxHP,
			Speed:    p.Speed,
			X:        p.X,
			Y:        p.Y,
		})
	}
	return players
}

// Subscribe attaches a new subscriber to the room's broadcast channel. The
// subscriber sees every message published after this call.
func (r *Room) Subscribe() *Subscription {
	return r.bc.subscribe()
}

// Publish encodes msg once and fans it out to every subscriber.
func (r *Room) Publish(msg protocol.ServerMessage) {
	frame, err := protocol.EncodeServer(msg)
	if err != nil {
		slog.Error("encode broadcast", "roomID", r.ID, "error", err)
		return
	}
	r.bc.publish(frame)
}

// broadcaster fans encoded frames out to per-subscriber buffered channels.
// Publishing never blocks: when a subscriber's buffer is full the frame is
// dropped for that subscriber only.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan []byte)}
}

// Subscription is a receive handle into a room's broadcast channel.
type Subscription struct {
	id int
	bc *broadcaster
	ch chan []byte
}

// C is the channel broadcast frames arrive on. It is closed by Cancel.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.bc.unsubscribe(s.id)
}

func (b *broadcaster) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan []byte, subscriberBuffer)
	b.subs[id] = ch
	return &Subscription{id: id, bc: b, ch: ch}
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) publish(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- frame:
		default:
			slog.Warn("subscriber lagging, dropping frame", "subscriber", id)
		}
	}
}
