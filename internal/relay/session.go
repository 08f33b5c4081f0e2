package relay

import (
	"log/slog"
	"time"

	"github.com/Ryan-DPC/vext-relay/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 64 << 10
)

// session is the per-connection state machine: Unjoined until the first
// successfully processed CreateGame/JoinGame, then Joined for the rest of
// the connection's lifetime. userID and roomID never change once set.
type session struct {
	id       string
	registry *Registry
	conn     *websocket.Conn

	userID string
	roomID string
	sub    *Subscription

	done chan struct{}
}

func newSession(registry *Registry, conn *websocket.Conn) *session {
	return &session{
		id:       uuid.New().String(),
		registry: registry,
		conn:     conn,
		done:     make(chan struct{}),
	}
}

// run races the inbound socket against the room broadcast channel until the
// socket dies, then runs the leave cleanup.
func (s *session) run() {
	defer func() {
		close(s.done)
		s.leave()
		s.conn.Close()
		slog.Info("client disconnected", "sessionID", s.id, "userID", s.userID)
	}()

	slog.Info("client connected", "sessionID", s.id)

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	frames := make(chan []byte)
	go s.readFrames(frames)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		// A nil channel blocks forever, so before the first join only the
		// socket and the ping ticker are raced.
		var bcast <-chan []byte
		if s.sub != nil {
			bcast = s.sub.C()
		}

		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			if err := s.dispatch(data); err != nil {
				slog.Error("write to client", "sessionID", s.id, "error", err)
				return
			}

		case frame := <-bcast:
			if err := s.writeFrame(frame); err != nil {
				slog.Error("relay broadcast", "sessionID", s.id, "error", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readFrames feeds inbound frames to the session loop and closes the
// channel on read error or EOF.
func (s *session) readFrames(frames chan<- []byte) {
	defer close(frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("read message", "sessionID", s.id, "error", err)
			}
			return
		}
		select {
		case frames <- data:
		case <-s.done:
			return
		}
	}
}

func (s *session) writeFrame(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (s *session) writeMessage(msg protocol.ServerMessage) error {
	frame, err := protocol.EncodeServer(msg)
	if err != nil {
		slog.Error("encode unicast", "sessionID", s.id, "error", err)
		return nil
	}
	return s.writeFrame(frame)
}

// dispatch decodes and applies one inbound frame. Decode failures are
// logged and skipped, never fatal to the socket; a returned error means a
// write failed and the connection is gone.
func (s *session) dispatch(data []byte) error {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		slog.Error("drop undecodable frame", "sessionID", s.id, "error", err)
		return nil
	}

	switch m := msg.(type) {
	case *protocol.CreateGame:
		return s.handleCreate(m)
	case *protocol.JoinGame:
		return s.handleJoin(m)
	}

	// Everything below references the joined room; while Unjoined these
	// commands are no-ops.
	if s.roomID == "" {
		return nil
	}

	switch m := msg.(type) {
	case *protocol.StartGame:
		s.registry.WithRoomMut(s.roomID, func(r *Room) {
			r.Phase = PhasePlaying
			r.Publish(&protocol.GameStarted{Enemies: m.Enemies})
		})

	case *protocol.UseAttack:
		s.registry.WithRoomMut(s.roomID, func(r *Room) {
			var newHP *float64
			if m.TargetID != nil {
				newHP = r.ApplyDamage(*m.TargetID, m.Damage)
			}
			r.Publish(&protocol.CombatAction{
				ActorID:     s.userID,
				TargetID:    m.TargetID,
				ActionName:  m.AttackName,
				Damage:      m.Damage,
				ManaCost:    m.ManaCost,
				IsArea:      m.IsArea,
				TargetNewHP: newHP,
			})
		})

	case *protocol.AdminAttack:
		s.registry.WithRoomMut(s.roomID, func(r *Room) {
			var newHP *float64
			if m.TargetID != nil {
				newHP = r.ApplyDamage(*m.TargetID, m.Damage)
			}
			r.Publish(&protocol.CombatAction{
				ActorID:     m.ActorID,
				TargetID:    m.TargetID,
				ActionName:  m.AttackName,
				Damage:      m.Damage,
				TargetNewHP: newHP,
			})
		})

	case *protocol.ChangeClass:
		// Class names are opaque strings; the relay never validates them.
		s.registry.WithRoomMut(s.roomID, func(r *Room) {
			if p, ok := r.Players[s.userID]; ok {
				p.Class = m.Class
			}
			r.Publish(&protocol.PlayerUpdated{PlayerID: s.userID, Class: m.Class})
		})

	case *protocol.Input:
		s.registry.WithRoomMut(s.roomID, func(r *Room) {
			if p, ok := r.Players[s.userID]; ok {
				p.X = m.X
				p.Y = m.Y
			}
			r.Publish(&protocol.PlayerUpdate{PlayerID: s.userID, X: m.X, Y: m.Y, Anim: m.Anim})
		})

	case *protocol.EndTurn:
		s.registry.WithRoom(s.roomID, func(r *Room) {
			r.Publish(&protocol.TurnChanged{CurrentTurnID: m.NextTurnID})
		})

	case *protocol.NextWave:
		s.registry.WithRoom(s.roomID, func(r *Room) {
			r.Publish(&protocol.WaveStarted{Enemies: m.Enemies, Gold: m.Gold, Exp: m.Exp})
		})

	case *protocol.GameOver:
		s.registry.WithRoom(s.roomID, func(r *Room) {
			r.Publish(&protocol.GameEnded{Victory: m.Victory})
		})

	case *protocol.Auth, *protocol.Flee:
		// Accepted, not acted upon: the token was already checked at
		// upgrade time and Flee has no server event to relay.
	}

	return nil
}

func (s *session) handleCreate(m *protocol.CreateGame) error {
	if s.roomID != "" {
		return nil
	}

	player := &Player{
		Username: m.Username,
		Class:    m.PlayerClass,
		HP:       m.HP,
		MaxHP:    m.MaxHP,
		Speed:    DefaultSpeed,
	}

	room, created := s.registry.GetOrCreate(m.GameID, func(r *Room) {
		r.HostID = m.UserID
		r.AddPlayer(m.UserID, player)
		s.sub = r.Subscribe()
	})

	hostID := m.UserID
	if !created {
		// Defensive path: CreateGame against an existing id behaves like a
		// join, but the original creator stays host.
		s.registry.WithRoomMut(m.GameID, func(r *Room) {
			r.AddPlayer(m.UserID, player)
			s.sub = r.Subscribe()
			hostID = r.HostID
		})
	}

	s.userID = m.UserID
	s.roomID = room.ID
	slog.Info("game created", "sessionID", s.id, "roomID", room.ID, "hostID", hostID)

	return s.writeMessage(&protocol.NewHost{GameID: room.ID, HostID: hostID})
}

func (s *session) handleJoin(m *protocol.JoinGame) error {
	if s.roomID != "" {
		return nil
	}

	var snapshot protocol.GameState
	found := s.registry.WithRoomMut(m.GameID, func(r *Room) {
		r.AddPlayer(m.UserID, &Player{
			Username: m.Username,
			Class:    m.PlayerClass,
			HP:       m.HP,
			MaxHP:    m.MaxHP,
			Speed:    DefaultSpeed,
		})
		s.sub = r.Subscribe()

		snapshot = protocol.GameState{
			Players: r.Roster(m.UserID),
			State:   string(r.Phase),
			HostID:  r.HostID,
		}

		// Published after the subscribe above, so the joiner sees its own
		// PlayerJoined right after the snapshot.
		r.Publish(&protocol.PlayerJoined{
			PlayerID: m.UserID,
			Username: m.Username,
			Class:    m.PlayerClass,
			HP:       m.HP,
			MaxHP:    m.MaxHP,
		})
	})
	if !found {
		// Unknown room id: stale client state, dropped without an error.
		slog.Info("join to unknown room dropped", "sessionID", s.id, "roomID", m.GameID)
		return nil
	}

	s.userID = m.UserID
	s.roomID = m.GameID
	slog.Info("player joined game", "sessionID", s.id, "roomID", m.GameID, "userID", m.UserID)

	return s.writeMessage(&snapshot)
}

// leave removes this connection's player from its room and tells the rest
// of the room. Running it twice is harmless.
func (s *session) leave() {
	if s.roomID == "" {
		return
	}

	s.registry.WithRoomMut(s.roomID, func(r *Room) {
		if r.RemovePlayer(s.userID) {
			r.Publish(&protocol.PlayerLeft{PlayerID: s.userID})
		}
	})

	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.roomID = ""
}
