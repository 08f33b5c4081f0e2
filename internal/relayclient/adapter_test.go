package relayclient

import (
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Ryan-DPC/vext-relay/internal/auth"
	"github.com/Ryan-DPC/vext-relay/internal/protocol"
	"github.com/Ryan-DPC/vext-relay/internal/relay"

	"github.com/gin-gonic/gin"
)

// testServer wraps http.Server so Close also tears down hijacked (WebSocket)
// connections, which http.Server.Close leaves alone.
type testServer struct {
	srv   *http.Server
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func (s *testServer) Close() error {
	err := s.srv.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = map[net.Conn]struct{}{}
	s.mu.Unlock()
	return err
}

// startRelay serves a fresh relay on addr ("127.0.0.1:0" picks a port) and
// returns the server plus the bound address.
func startRelay(t *testing.T, addr string) (*testServer, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	relay.NewHandler(relay.NewRegistry(), auth.OpaqueTokenManager{}).Register(router)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	ts := &testServer{conns: map[net.Conn]struct{}{}}
	ts.srv = &http.Server{
		Handler: router,
		ConnState: func(c net.Conn, state http.ConnState) {
			ts.mu.Lock()
			defer ts.mu.Unlock()
			switch state {
			case http.StateNew:
				ts.conns[c] = struct{}{}
			case http.StateClosed:
				delete(ts.conns, c)
			}
		},
	}
	go ts.srv.Serve(ln)
	t.Cleanup(func() { ts.Close() })
	return ts, ln.Addr().String()
}

func awaitEvent(t *testing.T, a *Adapter, match func(protocol.ServerMessage) bool) protocol.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range a.Poll() {
			if match(ev) {
				return ev
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for event")
	return nil
}

func isNewHost(ev protocol.ServerMessage) bool {
	_, ok := ev.(*protocol.NewHost)
	return ok
}

func isError(ev protocol.ServerMessage) bool {
	_, ok := ev.(*protocol.Error)
	return ok
}

func TestPollNeverBlocks(t *testing.T) {
	a := New("ws://127.0.0.1:1/ws?token=t")

	done := make(chan struct{})
	go func() {
		if ev := a.Poll(); ev != nil {
			t.Errorf("expected no events, got %v", ev)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Poll blocked the caller")
	}
}

func TestAdapterCreateGameFlow(t *testing.T) {
	_, addr := startRelay(t, "127.0.0.1:0")

	a := New("ws://" + addr + "/ws?token=t")
	a.reconnectDelay = 50 * time.Millisecond
	a.Start()
	defer a.Close()

	a.Send(&protocol.CreateGame{
		GameID: "room1", UserID: "u1", Username: "Alice",
		PlayerClass: "warrior", HP: 100, MaxHP: 100,
	})

	ev := awaitEvent(t, a, isNewHost).(*protocol.NewHost)
	if ev.GameID != "room1" || ev.HostID != "u1" {
		t.Fatalf("unexpected NewHost: %+v", ev)
	}
}

func TestAdapterSurfacesConnectErrors(t *testing.T) {
	// Nothing listens here; each failed dial should surface as an Error
	// event, not a panic or a blocked caller.
	a := New("ws://127.0.0.1:1/ws?token=t")
	a.reconnectDelay = 50 * time.Millisecond
	a.Start()
	defer a.Close()

	awaitEvent(t, a, isError)
}

func TestAdapterReconnectReplaysJoin(t *testing.T) {
	srv, addr := startRelay(t, "127.0.0.1:0")

	a := New("ws://" + addr + "/ws?token=t")
	a.reconnectDelay = 50 * time.Millisecond
	a.Start()
	defer a.Close()

	a.Send(&protocol.CreateGame{
		GameID: "room1", UserID: "u1", Username: "Alice",
		PlayerClass: "warrior", HP: 100, MaxHP: 100,
	})
	awaitEvent(t, a, isNewHost)

	// Kill the server; the adapter reports the drop and starts retrying.
	srv.Close()
	awaitEvent(t, a, isError)

	// Bring a fresh relay up on the same address. The adapter replays the
	// original CreateGame, so membership is re-established without the
	// game loop doing anything.
	_, _ = startRelay(t, addr)
	awaitEvent(t, a, isNewHost)
}
