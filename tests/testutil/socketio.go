package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// SocketServer is a minimal Socket.IO v4 server for exercising the realtime
// channel: it performs the open/connect handshake, records every frame the
// client sends afterwards and can push events or drop connections.
type SocketServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn

	frames   chan string
	connects atomic.Int32
	reject   atomic.Bool
}

// NewSocketServer starts a SocketServer that is shut down with the test.
func NewSocketServer(t *testing.T) *SocketServer {
	t.Helper()

	s := &SocketServer{frames: make(chan string, 256)}

	r := chi.NewRouter()
	r.Get("/socket.io/", s.handle)
	s.server = httptest.NewServer(r)

	t.Cleanup(func() {
		s.DropAll()
		s.server.Close()
	})
	return s
}

// URL returns the websocket endpoint for realtime.New.
func (s *SocketServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/socket.io/?EIO=4&transport=websocket"
}

// RejectConnect makes subsequent namespace connects fail with a connect error.
func (s *SocketServer) RejectConnect(reject bool) {
	s.reject.Store(reject)
}

// Connects returns the number of completed handshakes.
func (s *SocketServer) Connects() int {
	return int(s.connects.Load())
}

// Send pushes an event to every connected client.
func (s *SocketServer) Send(t *testing.T, event string, payload any) {
	t.Helper()

	args, err := json.Marshal([]any{event, payload})
	if err != nil {
		t.Fatalf("encoding event: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.WriteMessage(websocket.TextMessage, append([]byte("42"), args...)); err != nil {
			t.Logf("sending %s: %v", event, err)
		}
	}
}

// DropAll closes every open connection, simulating a network loss.
func (s *SocketServer) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// NextFrame returns the next frame received from a client after its
// handshake, failing the test after timeout.
func (s *SocketServer) NextFrame(t *testing.T, timeout time.Duration) string {
	t.Helper()

	select {
	case f := <-s.frames:
		return f
	case <-time.After(timeout):
		t.Fatalf("no frame received within %s", timeout)
		return ""
	}
}

// NoFrame asserts that no frame arrives within d.
func (s *SocketServer) NoFrame(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case f := <-s.frames:
		t.Fatalf("unexpected frame %q", f)
	case <-time.After(d):
	}
}

func (s *SocketServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	open := `0{"sid":"test-sid","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(open)); err != nil {
		return
	}

	_, msg, err := conn.ReadMessage()
	if err != nil || !strings.HasPrefix(string(msg), "40") {
		return
	}

	if s.reject.Load() {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`44{"message":"unauthorized"}`))
		return
	}

	s.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"test-socket"}`))
	if err == nil {
		s.conns = append(s.conns, conn)
	}
	s.mu.Unlock()
	if err != nil {
		return
	}
	s.connects.Add(1)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.frames <- string(msg)
	}
}
