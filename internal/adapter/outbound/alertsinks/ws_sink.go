package alertsinks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
)

// wsMessage is the envelope pushed to every attached connection; Type
// distinguishes an alert push from a stats push so a single client socket
// can render both.
type wsMessage struct {
	Type  string       `json:"type"` // "alert" or "stats"
	Alert *alert.Alert `json:"alert,omitempty"`
	Stats *alert.Stats `json:"stats,omitempty"`
}

const writeTimeout = 5 * time.Second

// WSSink fans out alerts and stats pushes to every WebSocket connection
// accepted through its HTTP handler. Connections are pruned automatically
// once a write to them fails.
type WSSink struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   *slog.Logger
}

// NewWSSink returns a ready-to-use WSSink.
func NewWSSink(log *slog.Logger) *WSSink {
	if log == nil {
		log = slog.Default()
	}
	return &WSSink{conns: make(map[*websocket.Conn]struct{}), log: log}
}

// ServeHTTP accepts a WebSocket upgrade and registers the connection for
// fan-out until the client disconnects.
func (s *WSSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.CloseNow()
	}()

	// Block until the client goes away; this sink is push-only.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// Accept pushes an alert to every attached connection.
func (s *WSSink) Accept(a alert.Alert) {
	s.broadcast(wsMessage{Type: "alert", Alert: &a})
}

// AcceptStats pushes a stats snapshot to every attached connection.
func (s *WSSink) AcceptStats(st alert.Stats) {
	s.broadcast(wsMessage{Type: "stats", Stats: &st})
}

func (s *WSSink) broadcast(msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal websocket alert payload", "error", err)
		return
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
			c.CloseNow()
		}
	}
}
