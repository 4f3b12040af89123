package router

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// messageWriter is the write half of a WebSocket connection. *websocket.Conn
// satisfies it; tests substitute a recorder.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsConn wraps a WebSocket connection with a write lock so replies and
// out-of-band service deliveries can be sent from different goroutines.
type wsConn struct {
	mu sync.Mutex
	w  messageWriter
}

func newWSConn(w messageWriter) *wsConn {
	return &wsConn{w: w}
}

// Send marshals v and writes it as a single text frame.
func (c *wsConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteMessage(websocket.TextMessage, data)
}

// makeUpgrader creates a WebSocket upgrader with origin checking.
func makeUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // backend services
			}
			return originSet[origin]
		},
	}
}
