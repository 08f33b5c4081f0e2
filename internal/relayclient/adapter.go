// Package relayclient is the game-facing side of the relay: a background
// goroutine owns the WebSocket while the render loop talks to it only
// through two bounded queues, so no lock is ever taken on the frame path.
package relayclient

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ryan-DPC/vext-relay/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultPingInterval   = 20 * time.Second
	writeWait             = 10 * time.Second
	pongWait              = 60 * time.Second
	queueSize             = 256
)

// Adapter manages the relay connection for one game instance. Commands go
// in through Send, events come out through Poll; the connection loop
// reconnects on failure with a fixed delay and replays the last
// create/join command so room membership survives a transient blip.
type Adapter struct {
	url string

	out  chan protocol.ClientMessage
	in   chan protocol.ServerMessage
	done chan struct{}

	mu      sync.Mutex
	joinCmd protocol.ClientMessage

	closeOnce      sync.Once
	reconnectDelay time.Duration
	pingInterval   time.Duration
}

// New creates an Adapter for the given ws:// URL (including the token query
// parameter). Start must be called before any traffic flows.
func New(url string) *Adapter {
	return &Adapter{
		url:            url,
		out:            make(chan protocol.ClientMessage, queueSize),
		in:             make(chan protocol.ServerMessage, queueSize),
		done:           make(chan struct{}),
		reconnectDelay: defaultReconnectDelay,
		pingInterval:   defaultPingInterval,
	}
}

// Start launches the background connection-management loop.
func (a *Adapter) Start() {
	go a.run()
}

// Close stops the loop and drops the connection.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
}

// Send enqueues a command for the relay. It never blocks the caller; when
// the outbound queue is full the command is dropped and logged. The most
// recent CreateGame/JoinGame is remembered for replay on reconnect.
func (a *Adapter) Send(msg protocol.ClientMessage) {
	switch msg.(type) {
	case *protocol.CreateGame, *protocol.JoinGame:
		a.mu.Lock()
		a.joinCmd = msg
		a.mu.Unlock()
	}

	select {
	case a.out <- msg:
	default:
		slog.Warn("outbound queue full, dropping command", "tag", msg.ClientTag())
	}
}

// Poll drains all currently queued server events without blocking. The game
// loop calls this once per frame.
func (a *Adapter) Poll() []protocol.ServerMessage {
	var events []protocol.ServerMessage
	for {
		select {
		case msg := <-a.in:
			events = append(events, msg)
		default:
			return events
		}
	}
}

func (a *Adapter) run() {
	for {
		select {
		case <-a.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(a.url, nil)
		if err != nil {
			a.emit(&protocol.Error{Message: fmt.Sprintf("relay connect: %v", err)})
			if !a.sleep(a.reconnectDelay) {
				return
			}
			continue
		}

		slog.Info("connected to relay", "url", a.url)
		a.session(conn)
		conn.Close()

		select {
		case <-a.done:
			return
		default:
		}
		if !a.sleep(a.reconnectDelay) {
			return
		}
	}
}

// session runs one connection until it fails, pumping both queues and the
// keepalive ticker.
func (a *Adapter) session(conn *websocket.Conn) {
	// Re-assert room membership. If the relay already removed us on the
	// previous disconnect this re-adds the player; broadcasts sent in
	// between are lost.
	a.mu.Lock()
	joinCmd := a.joinCmd
	a.mu.Unlock()
	if joinCmd != nil {
		if err := a.write(conn, joinCmd); err != nil {
			a.emit(&protocol.Error{Message: fmt.Sprintf("relay rejoin: %v", err)})
			return
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-a.done:
				return
			}
		}
	}()

	ticker := time.NewTicker(a.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data, ok := <-frames:
			if !ok {
				// The reader sends no error when it exits through done.
				select {
				case err := <-readErr:
					a.emit(&protocol.Error{Message: fmt.Sprintf("relay read: %v", err)})
				case <-a.done:
				}
				return
			}
			msg, err := protocol.DecodeServer(data)
			if err != nil {
				slog.Error("drop undecodable event", "error", err)
				continue
			}
			a.emit(msg)

		case msg := <-a.out:
			if err := a.write(conn, msg); err != nil {
				a.emit(&protocol.Error{Message: fmt.Sprintf("relay write: %v", err)})
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				a.emit(&protocol.Error{Message: fmt.Sprintf("relay ping: %v", err)})
				return
			}
		}
	}
}

func (a *Adapter) write(conn *websocket.Conn, msg protocol.ClientMessage) error {
	frame, err := protocol.EncodeClient(msg)
	if err != nil {
		slog.Error("encode command", "error", err)
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// emit queues an event for Poll, dropping it when the game loop has fallen
// too far behind.
func (a *Adapter) emit(msg protocol.ServerMessage) {
	select {
	case a.in <- msg:
	default:
		slog.Warn("event queue full, dropping event", "tag", msg.ServerTag())
	}
}

// sleep waits d or until Close; false means the adapter is closing.
func (a *Adapter) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-a.done:
		return false
	}
}
